package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"horse.fit/polyglot/internal/batch"
	"horse.fit/polyglot/internal/cli"
)

func runJob(args []string) int {
	if len(args) == 0 || strings.ToLower(strings.TrimSpace(args[0])) != "show" {
		printJobUsage()
		return 2
	}

	fs := flag.NewFlagSet("job show", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		printJobUsage()
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	rt, err := bootstrap(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	svc := newServices(rt)
	job, err := svc.jobs.Lookup(rt.ctx, fs.Arg(0))
	if err != nil {
		if errors.Is(err, batch.ErrJobNotFound) || errors.Is(err, batch.ErrValidation) {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		fmt.Fprintf(os.Stderr, "Failed to load job: %v\n", err)
		return 1
	}
	chunks, err := svc.jobs.ListChunks(rt.ctx, job.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load job chunks: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(map[string]any{"job": job, "chunks": chunks}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
			return 1
		}
		return 0
	}

	fmt.Printf("job_id=%d job_uuid=%s type=%s status=%s project_id=%d\n", job.ID, job.UUID, job.Type, job.Status, job.ProjectID)
	fmt.Printf("progress=%d/%d chunk_size=%d created_at=%s started_at=%s finished_at=%s\n",
		job.Progress, job.TotalItems, job.ChunkSize,
		formatUTCTimestamp(job.CreatedAt), formatUTCTimestampPtr(job.StartedAt), formatUTCTimestampPtr(job.FinishedAt))
	if job.ErrorMessage != "" {
		fmt.Printf("error=%s\n", job.ErrorMessage)
	}

	rows := make([][]string, 0, len(chunks))
	for _, chunk := range chunks {
		rows = append(rows, []string{
			strconv.Itoa(chunk.ChunkNumber),
			chunk.Status,
			strconv.Itoa(chunk.Processed),
			formatUTCTimestamp(chunk.StartedAt),
			formatUTCTimestampPtr(chunk.FinishedAt),
			chunk.ErrorMessage,
		})
	}
	if err := writeTable([]string{"CHUNK", "STATUS", "PROCESSED", "STARTED", "FINISHED", "ERROR"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
		return 1
	}
	return 0
}

func printJobUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  polyglot job show [--format table|json] [--env .env] <job_id|job_uuid>")
}
