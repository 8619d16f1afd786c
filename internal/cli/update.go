package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dbstore/store"
	"github.com/roach88/dbstore/update"
)

// UpdateOptions holds flags for the update command. Each flag may repeat.
type UpdateOptions struct {
	*RootOptions
	Set      []string
	Inc      []string
	Unset    []string
	Push     []string
	Pull     []string
	AddToSet []string
	Mul      []string
	Min      []string
	Max      []string
	Rename   []string
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpdateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <collection> <id>",
		Short: "Apply atomic field updates to a document",
		Long: `Apply field updates to one document as a single atomic operation.

Values are read as YAML scalars, like filter values. Updates are applied in
flag order: set, inc, unset, push, pull, add-to-set, mul, min, max, rename.`,
		Example: `  dbstore update users u1 --set name=Ann --inc visits=1
  dbstore update users u1 --add-to-set tags=admin --unset legacy
  dbstore update users u1 --rename mail=email`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(ctx context.Context, s *store.Store, f *OutputFormatter) error {
				ups, err := opts.updates()
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeInvalidArg, err)
				}
				coll, err := collection(ctx, s, rootOpts, f, args[0])
				if err != nil {
					return err
				}

				old, err := coll.Get(ctx, nil, args[1])
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeOperation, err)
				}
				if old == nil {
					return f.Fail(ExitFailure, ErrCodeNotFound, fmt.Errorf("%s/%s not found", args[0], args[1]))
				}

				applied, err := coll.Update(ctx, nil, args[1], ups)
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeOperation, err)
				}
				if !applied {
					f.VerboseLog("no applicable update for %s/%s", args[0], args[1])
				}

				doc, err := coll.Get(ctx, nil, args[1])
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeOperation, err)
				}
				return f.Success(doc)
			})
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVar(&opts.Set, "set", nil, "field=value to set")
	flags.StringArrayVar(&opts.Inc, "inc", nil, "field=n to increment by")
	flags.StringArrayVar(&opts.Unset, "unset", nil, "field to remove")
	flags.StringArrayVar(&opts.Push, "push", nil, "field=value to append")
	flags.StringArrayVar(&opts.Pull, "pull", nil, "field=value to remove from an array")
	flags.StringArrayVar(&opts.AddToSet, "add-to-set", nil, "field=value to append if absent")
	flags.StringArrayVar(&opts.Mul, "mul", nil, "field=n to multiply by")
	flags.StringArrayVar(&opts.Min, "min", nil, "field=value to lower to")
	flags.StringArrayVar(&opts.Max, "max", nil, "field=value to raise to")
	flags.StringArrayVar(&opts.Rename, "rename", nil, "field=new-name")

	return cmd
}

// updates converts the flags into field updates in flag order.
func (o *UpdateOptions) updates() ([]update.FieldUpdate, error) {
	var ups []update.FieldUpdate

	assign := []struct {
		flag   string
		values []string
		bare   bool // field only, no value
		build  func(field string, value any) update.FieldUpdate
	}{
		{"set", o.Set, false, update.Set},
		{"inc", o.Inc, false, update.Inc},
		{"unset", o.Unset, true, func(field string, _ any) update.FieldUpdate { return update.Unset(field) }},
		{"push", o.Push, false, update.Push},
		{"pull", o.Pull, false, update.Pull},
		{"add-to-set", o.AddToSet, false, update.AddToSet},
		{"mul", o.Mul, false, update.Mul},
		{"min", o.Min, false, update.Min},
		{"max", o.Max, false, update.Max},
	}

	for _, a := range assign {
		for _, s := range a.values {
			if a.bare {
				if s == "" {
					return nil, fmt.Errorf("--%s: empty field", a.flag)
				}
				ups = append(ups, a.build(s, nil))
				continue
			}
			field, raw, err := splitAssign(a.flag, s)
			if err != nil {
				return nil, err
			}
			ups = append(ups, a.build(field, ParseValue(raw)))
		}
	}

	for _, s := range o.Rename {
		field, to, err := splitAssign("rename", s)
		if err != nil {
			return nil, err
		}
		if to == "" {
			return nil, fmt.Errorf("--rename %q: empty target", s)
		}
		ups = append(ups, update.Rename(field, to))
	}

	if len(ups) == 0 {
		return nil, errors.New("no updates given")
	}
	return ups, nil
}
