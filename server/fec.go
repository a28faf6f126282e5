package main

import (
	"net"

	"github.com/xtaci/fectun/fec"
)

// fecConn holds the most recently created FEC wrapper, if any, so main can
// hand its Counters to std.SnmpLogger without plumbing one through every
// listener goroutine.
var fecConn *fec.Conn

// fecPacketConn wraps conn with the FEC layer configured by config,
// defaulting the field width to 8 bits when unset so existing configs
// (written before the gfbits option existed) keep working unchanged.
func fecPacketConn(config *Config, conn net.PacketConn) net.PacketConn {
	if config.DataShard <= 0 || config.ParityShard <= 0 {
		return conn
	}
	m := config.GFBits
	if m <= 0 {
		m = 8
	}
	fecConn = fec.NewConn(conn, config.DataShard, config.DataShard+config.ParityShard, m)
	return fecConn
}
