// This file is part of bizfly-vm-protection
//
// Copyright (C) 2020  BizFly Cloud
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>

package cmd

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bizflycloud/bizflyctl/formatter"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bizflycloud/bizfly-vm-protection/pkg/protection"
)

var (
	listRecoveryPointsHeaders = []string{"Name", "Type", "Time", "Size"}
	recoveryPointID           string
	rpStart                   string
	rpEnd                     string
)

var recoveryPointCmd = &cobra.Command{
	Use:     "recovery-point",
	Aliases: []string{"rp"},
	Short:   "Inspect recovery points of a protected item.",
	Run: func(cmd *cobra.Command, args []string) {
		if err := cmd.Help(); err != nil {
			logger.Error(err.Error())
		}
	},
}

var recoveryPointListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recovery points, from the last 30 days by default.",
	Run: func(cmd *cobra.Command, args []string) {
		q := url.Values{}
		setQuery(q, "start", rpStart)
		setQuery(q, "end", rpEnd)

		var rps []*protection.IaasVMRecoveryPoint
		mustDo(http.MethodGet, itemPath()+"/recovery-points?"+q.Encode(), nil, &rps)
		formatter.Output(listRecoveryPointsHeaders, recoveryPointRows(rps))
	},
}

var recoveryPointShowCmd = &cobra.Command{
	Use:   "show RECOVERY_POINT",
	Short: "Show a recovery point.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var rp protection.IaasVMRecoveryPoint
		mustDo(http.MethodGet, itemPath()+"/recovery-points/"+url.PathEscape(args[0]), nil, &rp)
		formatter.Output(listRecoveryPointsHeaders, recoveryPointRows([]*protection.IaasVMRecoveryPoint{&rp}))
		if rp.StorageType != "" {
			fmt.Println("Storage:", rp.StorageType)
		}
	},
}

func recoveryPointRows(rps []*protection.IaasVMRecoveryPoint) [][]string {
	data := make([][]string, 0, len(rps))
	for _, rp := range rps {
		size := "-"
		if rp.SizeInBytes > 0 {
			size = humanize.Bytes(rp.SizeInBytes)
		}
		data = append(data, []string{rp.Name, rp.Type, humanTime(&rp.Time), size})
	}
	return data
}

// humanTime renders t as an absolute UTC time followed by a relative one.
func humanTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", t.UTC().Format(time.RFC3339), humanize.Time(*t))
}

func init() {
	for _, c := range []*cobra.Command{recoveryPointListCmd, recoveryPointShowCmd} {
		addItemFlags(c)
		recoveryPointCmd.AddCommand(c)
	}
	recoveryPointListCmd.Flags().StringVar(&rpStart, "start", "", "Start of the range, RFC 3339")
	recoveryPointListCmd.Flags().StringVar(&rpEnd, "end", "", "End of the range, RFC 3339")
	rootCmd.AddCommand(recoveryPointCmd)
}
