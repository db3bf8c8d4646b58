// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newHardwareCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "hardware",
		Short: "Show the host hardware summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.requestContext(cmd.Context())
			defer cancel()
			h, err := a.client.HardwareSummary(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "host    %s\n", h.Hostname)
			fmt.Fprintf(a.out, "os      %s %s (%s)\n", h.OS, h.Kernel, h.Arch)
			fmt.Fprintf(a.out, "cpu     %d cores, %d threads\n", h.CPUPhysical, h.CPULogical)
			fmt.Fprintf(a.out, "memory  %.1f / %.1f GB\n", h.MemUsedGB, h.MemTotalGB)
			fmt.Fprintf(a.out, "uptime  %s\n", time.Duration(h.UptimeSeconds)*time.Second)
			return nil
		},
	}
}

func newGPUCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "gpu",
		Short: "List GPUs with utilization, memory, temperature and power",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.requestContext(cmd.Context())
			defer cancel()
			gpus, err := a.client.GPUs(ctx)
			if err != nil {
				return err
			}
			if len(gpus) == 0 {
				fmt.Fprintln(a.out, "no GPUs")
				return nil
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tUTIL\tMEMORY\tTEMP\tPOWER")
			for _, g := range gpus {
				fmt.Fprintf(tw, "%d\t%s\t%.0f%%\t%.0f/%.0f MB\t%.0fC\t%.0fW\n",
					g.ID, g.Name, g.Util, g.MemUsedMB, g.MemTotalMB, g.TempC, g.PowerW)
			}
			return tw.Flush()
		},
	}
}

func newNetworkCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "network",
		Short: "List network interfaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.requestContext(cmd.Context())
			defer cancel()
			ifaces, err := a.client.NetworkInterfaces(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSTATE\tIPV4\tMAC\tRX MBPS\tTX MBPS")
			for _, n := range ifaces {
				state := "down"
				if n.IsUp {
					state = "up"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.1f\t%.1f\n",
					n.Name, state, orDash(n.IPv4), orDash(n.MAC), n.RxRateMbps, n.TxRateMbps)
			}
			return tw.Flush()
		},
	}
}

func newStorageCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "storage",
		Short: "List mounted disks and their usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.requestContext(cmd.Context())
			defer cancel()
			disks, err := a.client.Disks(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DEVICE\tMOUNT\tFS\tUSED GB\tTOTAL GB\tUSE%")
			for _, d := range disks {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					d.Device, d.Mountpoint, d.FSType, floatOrDash(d.UsedGB), floatOrDash(d.TotalGB), floatOrDash(d.Percent))
			}
			return tw.Flush()
		},
	}
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

// floatOrDash prints unmeasured values as "-".
func floatOrDash(f *float64) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *f)
}
