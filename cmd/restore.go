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
	"net/url"

	"github.com/spf13/cobra"

	"github.com/bizflycloud/bizfly-vm-protection/pkg/backupapi"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/server"
)

var restoreBody server.RestoreBody

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the disks of a recovery point to a storage account.",
	Run: func(cmd *cobra.Command, args []string) {
		path := itemPath() + "/recovery-points/" + url.PathEscape(recoveryPointID) + "/restore"
		var job backupapi.JobResponse
		mustDo(http.MethodPost, path, &restoreBody, &job)
		printJob(&job)
	},
}

func init() {
	addItemFlags(restoreCmd)
	restoreCmd.Flags().StringVar(&recoveryPointID, "recovery-point-id", "", "The ID of recovery point")
	restoreCmd.Flags().StringVar(&restoreBody.StorageAccountID, "storage-account", "", "Storage account receiving the restored disks")
	_ = restoreCmd.MarkFlagRequired("recovery-point-id")
	_ = restoreCmd.MarkFlagRequired("storage-account")
	rootCmd.AddCommand(restoreCmd)
}
