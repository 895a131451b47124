package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/eventeye/server/internal/api"
	"github.com/spf13/cobra"
)

// Set through -ldflags "-X github.com/eventeye/server/cmd/server/cmd.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := api.BuildInfo{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate}
		out := cmd.OutOrStdout()
		if versionJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}
		_, err := fmt.Fprintf(out, "EventEye Server %s\ncommit %s, built %s\n%s %s/%s\n",
			info.Version, info.GitCommit, info.BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return err
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print build information as JSON")
}
