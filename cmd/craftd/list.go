package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/craftd/craftd/internal/config"
	"github.com/craftd/craftd/internal/logging"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List managed instances",
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if _, err := logging.Init(cfg.Logging.Options()); err != nil {
		return err
	}
	defer logging.Close()

	backend, cleanup, err := newBackend(cfg)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	instances, err := backend.List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATUS\tTYPE\tVERSION\tPORT")
	for _, inst := range instances {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			inst.Name, inst.Status, inst.Type, inst.Version, inst.PrimaryPort())
	}
	return w.Flush()
}
