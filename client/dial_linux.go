// +build linux

package main

import (
	"net"

	"github.com/pkg/errors"
	kcp "github.com/xtaci/kcp-go/v5"
	"github.com/xtaci/tcpraw"
)

func dial(config *Config, block kcp.BlockCrypt) (*kcp.UDPSession, error) {
	if config.TCP {
		conn, err := tcpraw.Dial("tcp", config.RemoteAddr)
		if err != nil {
			return nil, errors.Wrap(err, "tcpraw.Dial()")
		}
		raddr, err := net.ResolveTCPAddr("tcp", config.RemoteAddr)
		if err != nil {
			return nil, errors.Wrap(err, "net.ResolveTCPAddr")
		}
		return kcp.NewConn2(raddr, block, 0, 0, fecPacketConn(config, conn))
	}

	udpaddr, err := net.ResolveUDPAddr("udp", config.RemoteAddr)
	if err != nil {
		return nil, errors.Wrap(err, "net.ResolveUDPAddr")
	}
	network := "udp4"
	if udpaddr.IP.To4() == nil {
		network = "udp"
	}
	conn, err := net.ListenUDP(network, nil)
	if err != nil {
		return nil, errors.Wrap(err, "net.ListenUDP")
	}
	return kcp.NewConn2(udpaddr, block, 0, 0, fecPacketConn(config, conn))
}
