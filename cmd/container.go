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

	"github.com/bizflycloud/bizflyctl/formatter"
	"github.com/spf13/cobra"

	"github.com/bizflycloud/bizfly-vm-protection/pkg/protection"
)

var (
	listContainersHeaders = []string{"Name", "Friendly Name", "Resource Group", "Registration", "Health"}
	listItemsHeaders      = []string{"Name", "Friendly Name", "Container", "Policy", "State", "Status", "Last Backup"}

	containerStatus string
	containerRG     string
	itemName        string
	itemStatus      string
	itemState       string
	containerName   string
)

var containerCmd = &cobra.Command{
	Use:   "container",
	Short: "Inspect protection containers.",
	Run: func(cmd *cobra.Command, args []string) {
		if err := cmd.Help(); err != nil {
			logger.Error(err.Error())
		}
	},
}

var containerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered containers.",
	Run: func(cmd *cobra.Command, args []string) {
		q := url.Values{}
		setQuery(q, "status", containerStatus)
		setQuery(q, "resource_group", containerRG)
		if len(args) > 0 {
			q.Set("name", args[0])
		}

		var containers []*protection.Container
		mustDo(http.MethodGet, "/containers/?"+q.Encode(), nil, &containers)

		data := make([][]string, 0, len(containers))
		for _, c := range containers {
			data = append(data, []string{c.Name, c.FriendlyName, c.ResourceGroup, c.RegistrationStatus.String(), c.HealthStatus})
		}
		formatter.Output(listContainersHeaders, data)
	},
}

var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Inspect protected items.",
	Run: func(cmd *cobra.Command, args []string) {
		if err := cmd.Help(); err != nil {
			logger.Error(err.Error())
		}
	},
}

var itemListCmd = &cobra.Command{
	Use:   "list",
	Short: "List protected items of a container.",
	Run: func(cmd *cobra.Command, args []string) {
		q := url.Values{}
		setQuery(q, "name", itemName)
		setQuery(q, "status", itemStatus)
		setQuery(q, "state", itemState)

		var items []*protection.IaasVMItem
		mustDo(http.MethodGet, "/containers/"+url.PathEscape(containerName)+"/items/?"+q.Encode(), nil, &items)
		formatter.Output(listItemsHeaders, itemRows(items))
	},
}

func itemRows(items []*protection.IaasVMItem) [][]string {
	data := make([][]string, 0, len(items))
	for _, it := range items {
		data = append(data, []string{
			it.Name,
			it.FriendlyName,
			it.ContainerName,
			it.PolicyName,
			it.ProtectionState.String(),
			it.ProtectionStatus.String(),
			humanTime(it.LastBackupTime),
		})
	}
	return data
}

func setQuery(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func init() {
	containerListCmd.Flags().StringVar(&containerStatus, "status", "", "Registration status: Registered, NotRegistered or Registering")
	containerListCmd.Flags().StringVar(&containerRG, "resource-group", "", "Resource group of the containers")
	containerCmd.AddCommand(containerListCmd)
	rootCmd.AddCommand(containerCmd)

	itemListCmd.Flags().StringVar(&containerName, "container", "", "Container of the items")
	_ = itemListCmd.MarkFlagRequired("container")
	itemListCmd.Flags().StringVar(&itemName, "name", "", "Friendly name of the item")
	itemListCmd.Flags().StringVar(&itemStatus, "status", "", "Protection status: Healthy or Unhealthy")
	itemListCmd.Flags().StringVar(&itemState, "state", "", "Protection state, such as Protected or ProtectionStopped")
	itemCmd.AddCommand(itemListCmd)
	rootCmd.AddCommand(itemCmd)
}
