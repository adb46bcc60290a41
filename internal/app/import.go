package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"horse.fit/polyglot/internal/cli"
	"horse.fit/polyglot/internal/dataimport"
)

func runImport(args []string) int {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	baseDir := fs.String("base-dir", ".", "Directory file names are made relative to; remaining directories become namespaces")
	apply := fs.Bool("apply", false, "Apply the import after staging")
	forceMode := fs.String("force-mode", "", "Conflict handling when applying: NO_FORCE, OVERRIDE or KEEP")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() < 3 {
		printImportUsage()
		return 2
	}

	projectID, err := parsePositiveID("project", fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	authorID, err := parsePositiveID("author", fs.Arg(1))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	mode, err := dataimport.ParseForceMode(*forceMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --force-mode: %v\n", err)
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	files, err := readImportFiles(*baseDir, fs.Args()[2:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	rt, err := bootstrap(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	svc := newServices(rt)
	view, err := svc.imports.AddFiles(rt.ctx, projectID, authorID, files)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to stage files: %v\n", err)
		return 1
	}

	if !*apply {
		if outputFormat == outputFormatJSON {
			if err := printJSON(view); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
				return 1
			}
			return 0
		}
		if err := printImportView(view); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
			return 1
		}
		return 0
	}

	result, err := svc.imports.Import(rt.ctx, view.ID, mode)
	if err != nil {
		if errors.Is(err, dataimport.ErrConflictNotResolved) || errors.Is(err, dataimport.ErrLanguageNotSelected) {
			_ = printImportView(view)
		}
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
			return 1
		}
	} else {
		fmt.Printf("imported_files=%d failed_files=%d written=%d kept=%d import_deleted=%t\n",
			len(result.ImportedFiles), len(result.FailedFiles), result.TranslationsWritten, result.TranslationsKept, result.ImportDeleted)
		for _, failed := range result.FailedFiles {
			fmt.Printf("failed file=%s error=%s\n", failed.Name, failed.Error)
		}
	}
	if len(result.FailedFiles) > 0 {
		return 1
	}
	return 0
}

// readImportFiles loads the files from disk, naming each by its slash path
// relative to baseDir.
func readImportFiles(baseDir string, paths []string) ([]dataimport.UploadedFile, error) {
	files := make([]dataimport.UploadedFile, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read import file %q: %w", path, err)
		}
		files = append(files, dataimport.UploadedFile{Name: importFileName(baseDir, path), Content: content})
	}
	return files, nil
}

func importFileName(baseDir, path string) string {
	rel, err := filepath.Rel(baseDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}

func printImportView(view dataimport.ImportView) error {
	fmt.Printf("import_id=%d import_uuid=%s files=%d languages=%d\n", view.ID, view.UUID, len(view.Files), len(view.Languages))
	for _, file := range view.Files {
		for _, issue := range file.Issues {
			fmt.Printf("issue file=%s type=%s params=%v\n", file.Name, issue.Type, issue.Params)
		}
	}

	rows := make([][]string, 0, len(view.Languages))
	for _, lang := range view.Languages {
		rows = append(rows, []string{
			strconv.FormatInt(lang.ID, 10),
			lang.FileName,
			lang.Namespace,
			lang.Name,
			lang.ExistingLanguageTag,
			strconv.Itoa(lang.TotalCount),
			strconv.Itoa(lang.ConflictCount),
			strconv.Itoa(lang.ResolvedCount),
		})
	}
	return writeTable([]string{"ID", "FILE", "NAMESPACE", "LANGUAGE", "EXISTING", "TOTAL", "CONFLICTS", "RESOLVED"}, rows)
}

func printImportUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  polyglot import [--apply] [--force-mode NO_FORCE|OVERRIDE|KEEP] [--base-dir .] [--format table|json] [--env .env] <project_id> <author_id> <files...>")
}
