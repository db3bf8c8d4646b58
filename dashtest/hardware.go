// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

package dashtest

import "net/http"

// HardwareSummary is what /api/hardware/summary answers.
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

// GPU is one entry of /api/gpu.
type GPU struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	Util       float64 `json:"util"`
	MemUsedMB  float64 `json:"mem_used_mb"`
	MemTotalMB float64 `json:"mem_total_mb"`
	TempC      float64 `json:"temp_c"`
	PowerW     float64 `json:"power_w"`
}

// NetInterface is one entry of /api/network/interfaces. Addresses the host
// does not have are null.
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

// Disk is one entry of /api/storage/disks. Usage is null for partitions that
// could not be measured.
type Disk struct {
	Device     string   `json:"device"`
	Mountpoint string   `json:"mountpoint"`
	FSType     string   `json:"fstype"`
	TotalGB    *float64 `json:"total_gb"`
	UsedGB     *float64 `json:"used_gb"`
	Percent    *float64 `json:"percent"`
}

// WithHardware sets the /api/hardware/summary answer.
func WithHardware(h HardwareSummary) Option {
	return func(s *Server) {
		s.hardware = h
	}
}

// WithGPUs sets the /api/gpu answer. No GPUs answers an empty list.
func WithGPUs(gpus ...GPU) Option {
	return func(s *Server) {
		s.gpus = append([]GPU{}, gpus...)
	}
}

// WithInterfaces sets the /api/network/interfaces answer.
func WithInterfaces(ifaces ...NetInterface) Option {
	return func(s *Server) {
		s.ifaces = append([]NetInterface{}, ifaces...)
	}
}

// WithDisks sets the /api/storage/disks answer.
func WithDisks(disks ...Disk) Option {
	return func(s *Server) {
		s.disks = append([]Disk{}, disks...)
	}
}

func strPtr(v string) *string { return &v }

func floatPtr(v float64) *float64 { return &v }

func defaultHardware() HardwareSummary {
	return HardwareSummary{
		Hostname:      "dash-test",
		OS:            "Linux",
		OSVersion:     "#1 SMP PREEMPT_DYNAMIC",
		Kernel:        "6.1.0",
		Arch:          "x86_64",
		CPUPhysical:   4,
		CPULogical:    8,
		MemTotalGB:    15.6,
		MemUsedGB:     6.2,
		UptimeSeconds: 86400,
	}
}

func defaultGPUs() []GPU {
	return []GPU{{ID: 0, Name: "NVIDIA A10", Util: 37, MemUsedMB: 4096, MemTotalMB: 23028, TempC: 54, PowerW: 71}}
}

func defaultInterfaces() []NetInterface {
	return []NetInterface{
		{
			Name: "eth0", IsUp: true, SpeedMbps: 1000, MTU: 1500,
			IPv4: strPtr("10.0.0.5"), IPv6: strPtr("fe80::42:acff:fe11:2"), MAC: strPtr("02:42:ac:11:00:02"),
			RxBytes: 123456789, TxBytes: 98765432, RxRateMbps: 12.5, TxRateMbps: 3.1,
		},
		{Name: "lo", IsUp: true, MTU: 65536, IPv4: strPtr("127.0.0.1")},
	}
}

func defaultDisks() []Disk {
	return []Disk{
		{Device: "/dev/sda1", Mountpoint: "/", FSType: "ext4", TotalGB: floatPtr(100), UsedGB: floatPtr(42.5), Percent: floatPtr(42.5)},
		{Device: "/dev/sr0", Mountpoint: "/media/cdrom", FSType: "iso9660"},
	}
}

func (s *Server) handleHardware(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	h := s.hardware
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleGPUs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	gpus := s.gpus
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, gpus)
}

func (s *Server) handleInterfaces(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ifaces := s.ifaces
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, ifaces)
}

func (s *Server) handleDisks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	disks := s.disks
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, disks)
}
