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
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/bizflycloud/bizfly-vm-protection/pkg/backupapi"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/broker/mqtt"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/discovery"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/protection"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/server"
)

// agentCmd represents the agent command
var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run agent.",
	Run: func(cmd *cobra.Command, args []string) {
		agentID := viper.GetString("machine_id")

		clientOpts := []backupapi.ClientOption{
			backupapi.WithAccessKey(viper.GetString("access_key")),
			backupapi.WithSecretKey(viper.GetString("secret_key")),
			backupapi.WithVault(viper.GetString("vault")),
			backupapi.WithLogger(logger),
		}
		if u := viper.GetString("server_url"); u != "" {
			clientOpts = append(clientOpts, backupapi.WithServerURL(u))
		}
		backupClient, err := backupapi.NewClient(clientOpts...)
		if err != nil {
			logger.Fatal("failed to create new backup client", zap.Error(err))
			os.Exit(1)
		}

		resolver := discovery.NewResolver(backupClient,
			discovery.WithPollInterval(viper.GetDuration("poll_interval")),
			discovery.WithPollTimeout(viper.GetDuration("discovery_timeout")),
			discovery.WithLogger(logger),
		)
		orchestrator := protection.New(backupClient,
			protection.WithResolver(resolver),
			protection.WithLogger(logger),
		)

		opts := []server.Option{
			server.WithAddr(strings.TrimPrefix(addr, httpPrefix)),
			server.WithProtector(orchestrator),
			server.WithMachineID(agentID),
			server.WithLogger(logger),
		}
		if mqttURL := viper.GetString("broker_url"); mqttURL != "" {
			b, err := mqtt.NewBroker(mqtt.WithURL(mqttURL), mqtt.WithClientID(agentID), mqtt.WithLogger(logger))
			if err != nil {
				logger.Fatal("failed to create broker", zap.Error(err))
				os.Exit(1)
			}
			opts = append(opts,
				server.WithBroker(b),
				server.WithSubscribeTopics(brokerTopics(agentID)...),
				server.WithPublishTopic("agent/"+agentID+"/reply"),
			)
		}

		logger.Debug("Listening address: " + addr)
		s, err := server.New(opts...)
		if err != nil {
			logger.Fatal("failed to create new server", zap.Error(err))
			os.Exit(1)
		}
		if err := s.Run(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server run failed", zap.Error(err))
			os.Exit(1)
		}
	},
}

// brokerTopics are the command topics of an agent: the shared one and its own.
func brokerTopics(agentID string) []string {
	topics := []string{"agent/default"}
	if agentID != "" {
		topics = append(topics, "agent/"+agentID)
	}
	return topics
}

func init() {
	rootCmd.AddCommand(agentCmd)
}
