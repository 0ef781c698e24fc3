package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bull/docchat/internal/app"
	ghclient "github.com/bull/docchat/internal/github"
	"github.com/bull/docchat/internal/ingest"
	"github.com/bull/docchat/internal/model"
)

var addProcess bool

var addCmd = &cobra.Command{
	Use:   "add FILE...",
	Short: "Upload local files as documents",
	Long: `Copies each file into the upload directory and registers it as a
pending document. With --process the documents are processed right away.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

var processAll bool

var processCmd = &cobra.Command{
	Use:   "process [DOCUMENT_ID...]",
	Short: "Extract, chunk and embed documents",
	Long:  "Processes the given documents, or every pending and failed document with --all.",
	RunE:  runProcess,
}

var importProcess bool

var importCmd = &cobra.Command{
	Use:   "import-github github://OWNER/REPO[/PATH]",
	Short: "Register every markdown file below a GitHub path",
	Long: `Lists markdown files below a repository path at the latest commit and
registers each one as a document. Content is fetched when documents are processed.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"ls"},
	Short:   "List documents and their processing status",
	Args:    cobra.NoArgs,
	RunE:    runDocuments,
}

var deleteCmd = &cobra.Command{
	Use:   "delete DOCUMENT_ID...",
	Short: "Delete documents and their chunks",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDelete,
}

func init() {
	addCmd.Flags().BoolVar(&addProcess, "process", false, "process documents after upload")
	processCmd.Flags().BoolVar(&processAll, "all", false, "process every pending or failed document")
	importCmd.Flags().BoolVar(&importProcess, "process", false, "process documents after import")
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, path := range args {
		if _, err := ingest.CheckType(filepath.Base(path), ""); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	var ids []string
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		name := filepath.Base(path)
		ref, err := a.Files.Put(uuid.NewString()+"-"+name, data)
		if err != nil {
			return fmt.Errorf("store %s: %w", name, err)
		}
		doc := &model.Document{OwnerID: ownerID, Filename: name, StorageRef: ref, Size: int64(len(data))}
		if err := a.Pipeline.Register(ctx, doc); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
		fmt.Printf("Added %s (%s)\n", name, doc.ID)
		ids = append(ids, doc.ID)
	}

	if !addProcess {
		return nil
	}
	return processIDs(cmd, a, ids)
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if processAll == (len(args) > 0) {
		return fmt.Errorf("pass document IDs or --all")
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	ids := args
	if processAll {
		docs, err := a.Store.ListDocuments(ctx, ownerID)
		if err != nil {
			return err
		}
		for _, d := range docs {
			if d.Status == model.StatusPending || d.Status == model.StatusError {
				ids = append(ids, d.ID)
			}
		}
		if len(ids) == 0 {
			fmt.Println("Nothing to process")
			return nil
		}
	}
	return processIDs(cmd, a, ids)
}

func processIDs(cmd *cobra.Command, a *app.App, ids []string) error {
	start := time.Now()
	fmt.Printf("Processing %d documents...\n", len(ids))

	var failed int
	var chunks int
	for _, r := range a.Pipeline.ProcessMany(cmd.Context(), ids) {
		if r.Err != nil {
			failed++
			fmt.Printf("  - %s: %v\n", r.DocumentID, r.Err)
			continue
		}
		chunks += r.Chunks
		fmt.Printf("  - %s: %d chunks\n", r.DocumentID, r.Chunks)
	}

	fmt.Println()
	fmt.Printf("  Documents: %d/%d\n", len(ids)-failed, len(ids))
	fmt.Printf("  Chunks: %d\n", chunks)
	fmt.Printf("  Duration: %s\n", time.Since(start).Round(time.Millisecond))
	if failed > 0 {
		return fmt.Errorf("%d documents failed", failed)
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dir, err := ghclient.ParseRef(args[0])
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("Importing %s...\n", dir)
	result, err := a.Importer.Import(ctx, ownerID, dir)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Import complete!")
	fmt.Printf("  Documents: %d\n", len(result.Documents))
	fmt.Printf("  Commit: %s\n", result.CommitSHA)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Millisecond))

	if !importProcess || len(result.Documents) == 0 {
		return nil
	}
	ids := make([]string, len(result.Documents))
	for i, d := range result.Documents {
		ids[i] = d.ID
	}
	fmt.Println()
	return processIDs(cmd, a, ids)
}

func runDocuments(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.Store.ListDocuments(ctx, ownerID)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("No documents")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFILENAME\tSTATUS\tCHUNKS\tUPDATED")
	for _, d := range docs {
		status := string(d.Status)
		if d.Error != "" {
			status += ": " + d.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", d.ID, d.Filename, status, d.ChunkCount, d.UpdatedAt.Format(time.DateTime))
	}
	return w.Flush()
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, id := range args {
		doc, err := a.Store.GetDocument(ctx, id)
		if err != nil || doc.OwnerID != ownerID {
			return fmt.Errorf("document %s not found", id)
		}
		if err := a.Pipeline.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
		fmt.Printf("Deleted %s (%s)\n", doc.Filename, id)
	}
	return nil
}
