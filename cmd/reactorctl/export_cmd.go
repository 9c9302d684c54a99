package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/mindburn-labs/reactorcore/pkg/reactor"
	"github.com/mindburn-labs/reactorcore/pkg/replay"
)

func runExportCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("export", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		dbPath   string
		action   int
		bucket   string
		key      string
		region   string
		endpoint string
	)
	cmd.StringVar(&dbPath, "db", "", "path to the replay SQLite database (REQUIRED)")
	cmd.IntVar(&action, "action", -1, "action key to export (REQUIRED)")
	cmd.StringVar(&bucket, "bucket", "", "destination S3 bucket (REQUIRED)")
	cmd.StringVar(&key, "key", "", "destination S3 object key (REQUIRED)")
	cmd.StringVar(&region, "region", "us-east-1", "AWS region")
	cmd.StringVar(&endpoint, "endpoint", "", "custom S3 endpoint (for MinIO/LocalStack)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if dbPath == "" || action < 0 || bucket == "" || key == "" {
		fmt.Fprintln(stderr, "error: --db, --action, --bucket, and --key are required")
		return 2
	}

	ctx := context.Background()

	sqldb, err := sql.Open("sqlite", dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: open %s: %v\n", dbPath, err)
		return 1
	}
	defer sqldb.Close()

	store, err := replay.NewSQLiteStore(sqldb)
	if err != nil {
		fmt.Fprintf(stderr, "error: open replay store: %v\n", err)
		return 1
	}
	defer store.Close()

	entries, err := store.List(ctx, reactor.ActionKey(action))
	if err != nil {
		fmt.Fprintf(stderr, "error: list action %d: %v\n", action, err)
		return 1
	}

	snapshot, err := replay.Snapshot(entries)
	if err != nil {
		fmt.Fprintf(stderr, "error: build snapshot: %v\n", err)
		return 1
	}

	uploader, err := newSnapshotUploader(ctx, region, endpoint, bucket)
	if err != nil {
		fmt.Fprintf(stderr, "error: configure S3 client: %v\n", err)
		return 1
	}
	if err := uploader.upload(ctx, key, snapshot); err != nil {
		fmt.Fprintf(stderr, "error: upload snapshot: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "exported %d entries for action %s to s3://%s/%s\n",
		len(entries), strconv.Itoa(action), bucket, key)
	return 0
}
