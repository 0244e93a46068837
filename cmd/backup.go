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
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/bizflycloud/bizfly-vm-protection/pkg/backupapi"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/server"
)

var retainFor time.Duration

// backupCmd represents the backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Perform backup tasks.",
	Run: func(cmd *cobra.Command, args []string) {
		if err := cmd.Help(); err != nil {
			logger.Error(err.Error())
		}
	},
}

// backupNowCmd represents the backup now command
var backupNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Run a backup of a protected item immediately.",
	Run: func(cmd *cobra.Command, args []string) {
		var body server.BackupBody
		if retainFor > 0 {
			body.ExpiryTime = time.Now().Add(retainFor).UTC()
		}
		var job backupapi.JobResponse
		mustDo(http.MethodPost, itemPath()+"/backup", &body, &job)
		printJob(&job)
	},
}

func init() {
	addItemFlags(backupNowCmd)
	backupNowCmd.Flags().DurationVar(&retainFor, "retain-for", 0, "Keep the recovery point this long (default: policy retention)")
	backupCmd.AddCommand(backupNowCmd)
	rootCmd.AddCommand(backupCmd)
}
