package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	lsAll bool

	lsCmd = &cobra.Command{
		Use:     "ls",
		Short:   "List the sounds under the asset root",
		Long:    paragraph(fmt.Sprintf("\n%s every WAVE file under the asset root. Files ignored by git are skipped unless %s is given.", keyword("List"), keyword("--all"))),
		Example: paragraph("soundsource ls\nsoundsource ls --assets ~/routes/default/sound"),
		Args:    cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			files, err := findSounds(cfg.AssetRoot, lsAll)
			if err != nil {
				return err
			}
			return listSounds(os.Stdout, files)
		},
	}
)

func init() {
	lsCmd.Flags().BoolVar(&lsAll, "all", false, "include files ignored by git")
}

func listSounds(w io.Writer, files []soundFile) error {
	if len(files) == 0 {
		_, err := fmt.Fprintln(w, faint("no sounds found"))
		return err //nolint:wrapcheck
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("SOUND", "SIZE", "MODIFIED")

	var total int64
	for _, f := range files {
		total += f.Size
		t.Row(f.Name, humanize.Bytes(uint64(f.Size)), humanize.Time(f.ModTime)) //nolint:gosec
	}
	_, err := fmt.Fprintf(w, "%s\n%s\n", t.String(),
		faint(fmt.Sprintf("%d sounds, %s", len(files), humanize.Bytes(uint64(total))))) //nolint:gosec
	return err //nolint:wrapcheck
}
