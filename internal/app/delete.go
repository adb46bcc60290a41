package app

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"horse.fit/polyglot/internal/batch"
	"horse.fit/polyglot/internal/cli"
)

func runDelete(args []string) int {
	if len(args) == 0 {
		printDeleteUsage()
		return 2
	}

	target := strings.ToLower(strings.TrimSpace(args[0]))
	if target != "keys" {
		fmt.Fprintf(os.Stderr, "Unknown delete target: %s\n\n", args[0])
		printDeleteUsage()
		return 2
	}

	fs := flag.NewFlagSet("delete "+target, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	dryRun := fs.Bool("dry-run", false, "Preview affected keys without deleting them")
	force := fs.Bool("force", false, "Skip confirmation prompt")

	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "delete keys requires a project id and at least one key id")
		printDeleteUsage()
		return 2
	}

	projectID, err := parsePositiveID("project", fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	keyIDs := make([]int64, 0, fs.NArg()-1)
	for _, raw := range fs.Args()[1:] {
		id, err := parsePositiveID("key id", raw)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		keyIDs = append(keyIDs, id)
	}

	rt, err := bootstrap(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	previewCount, err := rt.pool.CountProjectKeys(rt.ctx, projectID, keyIDs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to preview key delete: %v\n", err)
		return 1
	}
	if *dryRun {
		fmt.Printf("dry_run=true keys_affected=%d\n", previewCount)
		return 0
	}

	if !*force {
		ok, err := confirmDangerousAction(fmt.Sprintf("Delete %d keys from project %d?", previewCount, projectID))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read confirmation: %v\n", err)
			return 1
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "Cancelled")
			return 1
		}
	}

	payload, err := json.Marshal(batch.DeleteKeysRequest{KeyIDs: keyIDs})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode request: %v\n", err)
		return 1
	}

	svc := newServices(rt)
	job, err := svc.jobs.Submit(rt.ctx, batch.SubmitRequest{
		ProjectID: projectID,
		Type:      batch.JobDeleteKeys,
		Payload:   payload,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to submit delete job: %v\n", err)
		return 1
	}

	finished, err := svc.jobs.Run(rt.ctx, job.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Delete job %s failed: %v\n", job.UUID, err)
		return 1
	}
	fmt.Printf("job_uuid=%s status=%s keys_affected=%d\n", finished.UUID, finished.Status, finished.Progress)
	if finished.ErrorMessage != "" {
		fmt.Fprintf(os.Stderr, "Delete job %s ended with error: %s\n", finished.UUID, finished.ErrorMessage)
		return 1
	}
	return 0
}

func confirmDangerousAction(prompt string) (bool, error) {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", strings.TrimSpace(prompt))
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func printDeleteUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  polyglot delete keys [--dry-run] [--force] [--env .env] [--timeout 10m] <project_id> <key_id...>")
}
