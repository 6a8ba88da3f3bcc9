package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/PabloGalante/worksession/internal/app/evidence"
	"github.com/PabloGalante/worksession/internal/observability"
	"github.com/PabloGalante/worksession/internal/render"
)

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Read evidence packs",
}

// evidence show
var evidenceShowCmd = &cobra.Command{
	Use:   "show <share-id>",
	Short: "Print an evidence pack",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvidenceShow,
}

var (
	evidenceBySession bool
	evidenceWidth     int
)

func init() {
	rootCmd.AddCommand(evidenceCmd)
	evidenceCmd.AddCommand(evidenceShowCmd)

	evidenceShowCmd.Flags().BoolVar(&evidenceBySession, "session", false, "treat the argument as a session id")
	evidenceShowCmd.Flags().IntVar(&evidenceWidth, "width", 0, "wrap width (default: terminal width or 80)")
}

func runEvidenceShow(cmd *cobra.Command, args []string) error {
	observability.SetOutput(os.Stderr)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	svc, err := newServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	lookup := evidence.Lookup{ShareID: args[0]}
	if evidenceBySession {
		lookup = evidence.Lookup{SessionID: args[0]}
	}

	view, err := svc.evidence.Get(ctx, lookup)
	if err != nil {
		return err
	}

	fd := int(os.Stdout.Fd())
	interactive := term.IsTerminal(fd)

	width := evidenceWidth
	if width <= 0 {
		width = render.DefaultWidth
		if interactive {
			if w, _, err := term.GetSize(fd); err == nil && w > 0 {
				width = w
			}
		}
	}

	md := render.Markdown(view.Pack, view.Session, width)
	if interactive {
		md = render.Terminal(md, width)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), md)
	return err
}
