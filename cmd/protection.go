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
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bizflycloud/bizfly-vm-protection/pkg/backupapi"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/server"
)

var (
	protectBody      server.EnableProtectionBody
	deleteBackupData bool
)

var protectionCmd = &cobra.Command{
	Use:   "protection",
	Short: "Enable or disable protection of virtual machines.",
	Run: func(cmd *cobra.Command, args []string) {
		if err := cmd.Help(); err != nil {
			logger.Error(err.Error())
		}
	},
}

var protectionEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Protect a virtual machine, or change the policy of a protected one.",
	Example: `  bizfly-vm-protection protection enable --vm vm1 --resource-group rg --policy daily
  bizfly-vm-protection protection enable --container c1 --item vm1 --policy weekly`,
	Run: func(cmd *cobra.Command, args []string) {
		var job backupapi.JobResponse
		mustDo(http.MethodPost, "/protection", &protectBody, &job)
		printJob(&job)
	},
}

var protectionDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Stop protecting a virtual machine.",
	Run: func(cmd *cobra.Command, args []string) {
		path := itemPath() + "/?delete_backup_data=" + strconv.FormatBool(deleteBackupData)
		var job backupapi.JobResponse
		mustDo(http.MethodDelete, path, nil, &job)
		printJob(&job)
	},
}

// itemPath is the API path of the item selected by --container and --item.
func itemPath() string {
	return "/containers/" + url.PathEscape(containerName) + "/items/" + url.PathEscape(itemName)
}

func printJob(job *backupapi.JobResponse) {
	fmt.Printf("Job %s submitted (%s)\n", job.JobID, job.Status)
	if job.Location != "" {
		fmt.Println("Track it at", job.Location)
	}
}

// addItemFlags registers the --container and --item flags selecting a protected item.
func addItemFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&containerName, "container", "", "Container of the protected item")
	cmd.Flags().StringVar(&itemName, "item", "", "Name or friendly name of the protected item")
	_ = cmd.MarkFlagRequired("container")
	_ = cmd.MarkFlagRequired("item")
}

func init() {
	f := protectionEnableCmd.Flags()
	f.StringVar(&protectBody.VMName, "vm", "", "Name of the virtual machine to protect")
	f.StringVar(&protectBody.ResourceGroup, "resource-group", "", "Resource group of the virtual machine")
	f.StringVar(&protectBody.CloudService, "cloud-service", "", "Cloud service of a classic virtual machine")
	f.StringVar(&protectBody.ContainerName, "container", "", "Container of an already protected item")
	f.StringVar(&protectBody.ItemName, "item", "", "Already protected item")
	f.StringVar(&protectBody.PolicyName, "policy", "", "Name of the protection policy")
	_ = protectionEnableCmd.MarkFlagRequired("policy")

	addItemFlags(protectionDisableCmd)
	protectionDisableCmd.Flags().BoolVar(&deleteBackupData, "delete-backup-data", false, "Also delete the recovery points of the item")

	protectionCmd.AddCommand(protectionEnableCmd)
	protectionCmd.AddCommand(protectionDisableCmd)
	rootCmd.AddCommand(protectionCmd)
}
