package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/dbstore/store"
)

// NewBlobCommand creates the blob command group.
func NewBlobCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blob",
		Short: "Store and fetch binary objects",
	}
	cmd.AddCommand(newBlobPutCommand(opts))
	cmd.AddCommand(newBlobGetCommand(opts))
	return cmd
}

// BlobPutOptions holds flags for blob put.
type BlobPutOptions struct {
	*RootOptions
	Meta []string
}

func newBlobPutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BlobPutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "put <bucket> <id> <file|->",
		Short: "Upload a file as a binary object",
		Long: `Upload a file as a binary object, replacing any object with the same id.

Use "-" to read from stdin. Metadata values are read as YAML scalars.`,
		Example:       `  dbstore blob put avatars u1 ./ann.png --meta contentType=image/png --meta width=64`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(ctx context.Context, s *store.Store, f *OutputFormatter) error {
				meta := make(map[string]any, len(opts.Meta))
				for _, m := range opts.Meta {
					k, v, err := splitAssign("meta", m)
					if err != nil {
						return f.Fail(ExitCommandError, ErrCodeInvalidArg, err)
					}
					meta[k] = ParseValue(v)
				}

				var r io.Reader = cmd.InOrStdin()
				if args[2] != "-" {
					file, err := os.Open(args[2])
					if err != nil {
						return f.Fail(ExitCommandError, ErrCodeWriteFailed, err)
					}
					defer file.Close()
					r = file
				}

				bin, err := store.SaveBinary(ctx, s.DB(rootOpts.Database), args[0], &store.Binary{
					ID:       args[1],
					Metadata: meta,
					Content:  r,
				})
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeOperation, err)
				}

				if f.Format == "json" {
					return f.Success(map[string]any{"bucket": args[0], "id": bin.ID, "metadata": bin.Metadata})
				}
				fmt.Fprintf(f.Writer, "stored %s/%s\n", args[0], bin.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVar(&opts.Meta, "meta", nil, "key=value metadata (repeatable)")
	return cmd
}

// BlobGetOptions holds flags for blob get.
type BlobGetOptions struct {
	*RootOptions
	Output string
}

func newBlobGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BlobGetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <bucket> <id>",
		Short: "Download a binary object",
		Long: `Download a binary object to stdout, or to a file with -o.

With -o, a summary (size and metadata) is printed instead of the content.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(ctx context.Context, s *store.Store, f *OutputFormatter) error {
				bin, err := store.GetBinary(ctx, s.DB(rootOpts.Database), args[0], args[1])
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeOperation, err)
				}
				if bin == nil {
					return f.Fail(ExitFailure, ErrCodeNotFound, fmt.Errorf("blob %s/%s not found", args[0], args[1]))
				}

				if opts.Output == "" {
					if _, err := io.Copy(f.Writer, bin.Content); err != nil {
						return f.Fail(ExitCommandError, ErrCodeWriteFailed, err)
					}
					return nil
				}

				if err := writeFile(opts.Output, bin.Content); err != nil {
					return f.Fail(ExitCommandError, ErrCodeWriteFailed, err)
				}
				if f.Format == "json" {
					return f.Success(map[string]any{"bucket": args[0], "id": bin.ID, "size": bin.Size, "metadata": bin.Metadata, "path": opts.Output})
				}
				fmt.Fprintf(f.Writer, "wrote %d bytes to %s\n", bin.Size, opts.Output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the content to this file")
	return cmd
}

func writeFile(path string, r io.Reader) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
