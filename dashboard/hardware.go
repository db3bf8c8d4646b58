// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

package dashboard

import "context"

// Host inventory paths.
const (
	PathHardwareSummary   = "/api/hardware/summary"
	PathGPUs              = "/api/gpu"
	PathNetworkInterfaces = "/api/network/interfaces"
	PathStorageDisks      = "/api/storage/disks"
)

// HardwareSummary describes the monitored host.
type HardwareSummary struct {
	Hostname      string  `json:"hostname"`
	OS            string  `json:"os"`
	OSVersion     string  `json:"os_version"`
	Kernel        string  `json:"kernel"`
	Arch          string  `json:"arch"`
	CPUPhysical   int     `json:"cpu_physical"`
	CPULogical    int     `json:"cpu_logical"`
	MemTotalGB    float64 `json:"mem_total_gb"`
	MemUsedGB     float64 `json:"mem_used_gb"`
	UptimeSeconds int64   `json:"uptime_seconds"`
}

// GPU is one graphics card. Memory is in MiB.
type GPU struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	Util       float64 `json:"util"`
	MemUsedMB  float64 `json:"mem_used_mb"`
	MemTotalMB float64 `json:"mem_total_mb"`
	TempC      float64 `json:"temp_c"`
	PowerW     float64 `json:"power_w"`
}

// NetInterface is one network interface. Missing addresses are nil.
type NetInterface struct {
	Name       string  `json:"name"`
	IsUp       bool    `json:"isup"`
	SpeedMbps  int     `json:"speed_mbps"`
	MTU        int     `json:"mtu"`
	IPv4       *string `json:"ipv4"`
	IPv6       *string `json:"ipv6"`
	MAC        *string `json:"mac"`
	RxBytes    int64   `json:"rx_bytes"`
	TxBytes    int64   `json:"tx_bytes"`
	RxRateMbps float64 `json:"rx_rate_mbps"`
	TxRateMbps float64 `json:"tx_rate_mbps"`
}

// Disk is one mounted partition. The usage fields are nil when the backend
// could not measure the partition.
type Disk struct {
	Device     string   `json:"device"`
	Mountpoint string   `json:"mountpoint"`
	FSType     string   `json:"fstype"`
	TotalGB    *float64 `json:"total_gb"`
	UsedGB     *float64 `json:"used_gb"`
	Percent    *float64 `json:"percent"`
}

// Measured reports whether the usage fields are present.
func (d Disk) Measured() bool {
	return d.TotalGB != nil && d.UsedGB != nil && d.Percent != nil
}

// HardwareSummary returns the host description.
func (c *Client) HardwareSummary(ctx context.Context) (*HardwareSummary, error) {
	var h HardwareSummary
	if err := c.getJSON(ctx, PathHardwareSummary, nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// GPUs lists the graphics cards. A host without GPUs gives an empty list.
func (c *Client) GPUs(ctx context.Context) ([]GPU, error) {
	var gpus []GPU
	if err := c.getJSON(ctx, PathGPUs, nil, &gpus); err != nil {
		return nil, err
	}
	return gpus, nil
}

// NetworkInterfaces lists the network interfaces with their traffic rates.
func (c *Client) NetworkInterfaces(ctx context.Context) ([]NetInterface, error) {
	var ifaces []NetInterface
	if err := c.getJSON(ctx, PathNetworkInterfaces, nil, &ifaces); err != nil {
		return nil, err
	}
	return ifaces, nil
}

// Disks lists the mounted partitions.
func (c *Client) Disks(ctx context.Context) ([]Disk, error) {
	var disks []Disk
	if err := c.getJSON(ctx, PathStorageDisks, nil, &disks); err != nil {
		return nil, err
	}
	return disks, nil
}
