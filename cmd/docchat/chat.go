package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bull/docchat/internal/chat"
	"github.com/bull/docchat/internal/chunker"
	"github.com/bull/docchat/internal/extract"
	"github.com/bull/docchat/internal/rag"
)

var askChatID string

var askCmd = &cobra.Command{
	Use:   "ask QUESTION...",
	Short: "Ask a question answered from your documents",
	Long: `Streams an answer grounded in your processed documents, then lists the
sources it cited. Use --chat to continue an earlier conversation.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var (
	chunkSize    int
	chunkOverlap int
)

var chunkCmd = &cobra.Command{
	Use:   "chunk FILE",
	Short: "Preview how a file is chunked, offline",
	Long:  "Extracts and chunks a local file without embedding or storing anything.",
	Args:  cobra.ExactArgs(1),
	RunE:  runChunk,
}

func init() {
	askCmd.Flags().StringVar(&askChatID, "chat", "", "conversation ID to continue")
	chunkCmd.Flags().IntVar(&chunkSize, "size", 1000, "maximum chunk size in characters")
	chunkCmd.Flags().IntVar(&chunkOverlap, "overlap", 200, "characters shared by consecutive chunks")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var (
		answer strings.Builder
		meta   chat.MetadataEvent
	)
	sink := chat.SinkFunc(func(e chat.Event) error {
		switch ev := e.(type) {
		case chat.MetadataEvent:
			meta = ev
		case chat.ChunkEvent:
			answer.WriteString(ev.Text)
			fmt.Print(ev.Text)
		case chat.DoneEvent:
			fmt.Println()
		case chat.ErrorEvent:
			if answer.Len() > 0 {
				fmt.Println()
			}
		}
		return nil
	})

	req := chat.Request{OwnerID: ownerID, ConversationID: askChatID, Message: strings.Join(args, " ")}
	if err := a.Coordinator.Stream(ctx, req, sink); err != nil {
		return err
	}

	cited := rag.CitedSources(answer.String(), meta.Sources)
	if len(cited) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, s := range cited {
			fmt.Printf("  [%d] %s (similarity %.2f)\n", s.Number, s.Filename, s.Similarity)
		}
	}
	fmt.Println()
	fmt.Printf("Chat: %s\n", meta.ChatID)
	return nil
}

func runChunk(cmd *cobra.Command, args []string) error {
	path := args[0]
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	extracted, err := extract.Text(extract.DetectType(path), raw)
	if err != nil {
		return err
	}

	c := chunker.New(chunker.WithChunkSize(chunkSize), chunker.WithOverlap(chunkOverlap))
	pieces := c.Chunk(extracted.Text)

	if extracted.Title != "" {
		fmt.Printf("Title: %s\n", extracted.Title)
	}
	fmt.Printf("Chunks: %d (size %d, overlap %d)\n", len(pieces), c.Size(), c.Overlap())
	for _, p := range pieces {
		fmt.Println()
		fmt.Printf("--- chunk %d [%d:%d] %d chars ---\n", p.Index, p.Start, p.End, len([]rune(p.Content)))
		fmt.Println(p.Content)
	}
	return nil
}
