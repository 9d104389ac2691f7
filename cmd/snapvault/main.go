package main

import (
	"fmt"
	"os"

	"github.com/docopt/docopt-go"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	log "github.com/sirupsen/logrus"
	sv "github.com/t7a/snapvault"
)

func init() {
	if os.Getenv("DEBUG") == "1" {
		log.SetLevel(log.DebugLevel)
	}
	formatter := &logrus.TextFormatter{}
	formatter.TimestampFormat = "15:04:05.999999999"
	logrus.SetFormatter(formatter)
}

type Opts struct {
	Init     bool
	Backup   bool
	List     bool
	Restore  bool
	Delete   bool
	Verify   bool
	Repo     string
	Source   string
	Dest     string
	Snapshot string
	All      bool
	Quiet    bool `docopt:"-q"`
}

func main() {
	// see https://github.com/google/go-cmdtest
	os.Exit(run())
}

func run() (rc int) {

	usage := `snapvault - local snapshot backups with chunk-level dedup

Usage:
  snapvault init --repo <repo>
  snapvault backup --source <src> --repo <repo> [-q]
  snapvault list --repo <repo>
  snapvault restore --dest <dest> --repo <repo> [--snapshot <id>] [-q]
  snapvault delete --repo <repo> [--snapshot <id>] [--all] [-q]
  snapvault verify --repo <repo>

Options:
  -h --help        Show this screen.
  --version        Show version.
  --repo <repo>    Repository root directory.
  --source <src>   Directory to back up.
  --dest <dest>    Directory to restore into.
  --snapshot <id>  Operate on this snapshot.
  --all            Select every snapshot.
  -q               Suppress the summary output.
`
	parser := &docopt.Parser{OptionsFirst: false}
	o, err := parser.ParseArgs(usage, os.Args[1:], "1.0")
	if err != nil {
		return 1
	}
	var opts Opts
	err = o.Bind(&opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "snapvault: %v\n", err)
		return 1
	}
	log.Debugf("%+v", opts)

	switch true {
	case opts.Init:
		_, err = sv.Init(opts.Repo)
		if err != nil {
			return fail(err)
		}
		fmt.Printf("Initialized empty repository at %s\n", opts.Repo)
	case opts.Backup:
		repo, err := sv.Open(opts.Repo)
		if err != nil {
			return fail(err)
		}
		m, err := sv.Backup(repo, opts.Source)
		if err != nil {
			return fail(err)
		}
		if !opts.Quiet {
			printBackupSummary(m)
		}
	case opts.List:
		repo, err := sv.Open(opts.Repo)
		if err != nil {
			return fail(err)
		}
		manifests, err := sv.List(repo)
		if err != nil {
			return fail(err)
		}
		printList(manifests)
	case opts.Restore:
		repo, err := sv.Open(opts.Repo)
		if err != nil {
			return fail(err)
		}
		m, err := sv.Restore(repo, opts.Dest, opts.Snapshot)
		if err != nil {
			return fail(err)
		}
		if !opts.Quiet {
			fmt.Printf("Restored %s: %d files, %s\n",
				m.ID, m.Stats.FileCount, humanize.IBytes(uint64(m.Stats.TotalSize)))
		}
	case opts.Delete:
		sel, err := sv.NewSelector(opts.Snapshot, opts.All)
		if err != nil {
			return fail(err)
		}
		repo, err := sv.Open(opts.Repo)
		if err != nil {
			return fail(err)
		}
		deleted, err := sv.Delete(repo, sel)
		if err != nil {
			return fail(err)
		}
		if !opts.Quiet {
			for _, id := range deleted {
				fmt.Printf("Deleted %s\n", id)
			}
		}
	case opts.Verify:
		repo, err := sv.Open(opts.Repo)
		if err != nil {
			return fail(err)
		}
		report, err := sv.Verify(repo)
		if err != nil {
			return fail(err)
		}
		rc = printReport(report)
	}
	return rc
}

func fail(err error) int {
	fmt.Fprintf(os.Stderr, "snapvault: %v\n", err)
	return sv.ErrorClass(err)
}

func printBackupSummary(m *sv.Manifest) {
	fmt.Printf("Snapshot:      %s\n", m.ID)
	fmt.Printf("Files:         %d\n", m.Stats.FileCount)
	fmt.Printf("Total size:    %s (%d bytes)\n",
		humanize.IBytes(uint64(m.Stats.TotalSize)), m.Stats.TotalSize)
	fmt.Printf("Unique chunks: %d\n", m.Stats.UniqueChunks)
	fmt.Printf("Stored size:   %s (%d bytes)\n",
		humanize.IBytes(uint64(m.Stats.StoredSize)), m.Stats.StoredSize)
}

func printList(manifests []*sv.Manifest) {
	if len(manifests) == 0 {
		fmt.Println("No snapshots.")
		return
	}
	fmt.Printf("%-26s %-21s %7s %10s %10s  %s\n",
		"SNAPSHOT", "CREATED", "FILES", "SIZE", "STORED", "SOURCE")
	for _, m := range manifests {
		fmt.Printf("%-26s %-21s %7d %10s %10s  %s\n",
			m.ID,
			m.CreatedAt,
			m.Stats.FileCount,
			humanize.IBytes(uint64(m.Stats.TotalSize)),
			humanize.IBytes(uint64(m.Stats.StoredSize)),
			m.SourceRoot)
	}
}

func printReport(report *sv.VerifyReport) (rc int) {
	for _, hash := range report.MissingChunks {
		fmt.Printf("missing chunk: %s\n", hash)
	}
	for _, hash := range report.CorruptChunks {
		fmt.Printf("corrupt chunk: %s\n", hash)
	}
	for _, hash := range report.Unreferenced {
		fmt.Printf("unreferenced index entry: %s\n", hash)
	}
	for _, hash := range report.MissingRefs {
		fmt.Printf("missing index entry: %s\n", hash)
	}
	for _, hash := range report.Unindexed {
		fmt.Printf("unindexed chunk: %s\n", hash)
	}
	if report.TempsRemoved > 0 {
		fmt.Printf("removed %d stale temp files\n", report.TempsRemoved)
	}
	if report.Clean() {
		fmt.Println("Repository OK")
		return 0
	}
	return 2
}
