package main

import (
	"time"

	"github.com/feaksel/rv32boot"
)

// bootProfile is the yaml form of the bootloader configuration. Durations
// are plain milliseconds so profiles stay hand-editable. Zero fields keep
// their defaults.
type bootProfile struct {
	Capacity        int    `yaml:"capacity"`
	UpdateKey       string `yaml:"update_key"`
	OfferWindowMs   int    `yaml:"offer_window_ms"`
	HeaderTimeoutMs int    `yaml:"header_timeout_ms"`
	ChunkTimeoutMs  int    `yaml:"chunk_timeout_ms"`
	ChunkSize       int    `yaml:"chunk_size"`
	RetryDelayMs    int    `yaml:"retry_delay_ms"`
	RebootDelayMs   int    `yaml:"reboot_delay_ms"`
	StatusReply     *bool  `yaml:"status_reply"`
}

func (p *bootProfile) apply(opts *rv32boot.Options, capacity *int) {
	if p.Capacity > 0 {
		*capacity = p.Capacity
	}
	if p.UpdateKey != "" {
		opts.UpdateKey = p.UpdateKey[0]
	}
	if p.OfferWindowMs > 0 {
		opts.OfferWindow = time.Duration(p.OfferWindowMs) * time.Millisecond
	}
	if p.HeaderTimeoutMs > 0 {
		opts.HeaderTimeout = time.Duration(p.HeaderTimeoutMs) * time.Millisecond
	}
	if p.ChunkTimeoutMs > 0 {
		opts.ChunkTimeout = time.Duration(p.ChunkTimeoutMs) * time.Millisecond
	}
	if p.ChunkSize > 0 {
		opts.ChunkSize = p.ChunkSize
	}
	if p.RetryDelayMs > 0 {
		opts.RetryDelay = time.Duration(p.RetryDelayMs) * time.Millisecond
	}
	if p.RebootDelayMs > 0 {
		opts.RebootDelay = time.Duration(p.RebootDelayMs) * time.Millisecond
	}
	if p.StatusReply != nil {
		opts.StatusReply = *p.StatusReply
	}
}
