/*
 * Copyright 2026 Plugfleet Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package scan

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// ExpandTargets expands a list of target strings into a deduplicated,
// order-preserving list of IPv4 addresses. Supported forms:
//
//	192.168.1.5                  single address
//	192.168.1.5-192.168.1.20     inclusive range
//	192.168.1.5-20               inclusive short-form range (last octet)
//	192.168.1.0/24               CIDR (host addresses only for /30 and wider)
//
// A single malformed target aborts the whole expansion.
func ExpandTargets(targets []string) ([]string, error) {
	var (
		out  []string
		seen = make(map[string]struct{})
	)

	add := func(addrs []string) {
		for _, a := range addrs {
			if _, dup := seen[a]; dup {
				continue
			}

			seen[a] = struct{}{}

			out = append(out, a)
		}
	}

	for _, raw := range targets {
		target := strings.TrimSpace(raw)
		if target == "" {
			return nil, fmt.Errorf("%w: empty target", ErrInvalidTarget)
		}

		switch {
		case strings.Contains(target, "/"):
			addrs, err := ExpandCIDR(target)
			if err != nil {
				return nil, fmt.Errorf("%w %q: %w", ErrInvalidTarget, target, err)
			}

			add(addrs)
		case strings.Contains(target, "-"):
			addrs, err := expandRange(target)
			if err != nil {
				return nil, fmt.Errorf("%w %q: %w", ErrInvalidTarget, target, err)
			}

			add(addrs)
		default:
			addr, err := parseIPv4(target)
			if err != nil {
				return nil, fmt.Errorf("%w %q: %w", ErrInvalidTarget, target, err)
			}

			add([]string{addr.String()})
		}
	}

	return out, nil
}

// ExpandCIDR expands a CIDR notation into a slice of IP addresses.
// Skips network and broadcast addresses for prefixes of /30 and wider;
// /31 and /32 yield every address in the block.
func ExpandCIDR(cidr string) ([]string, error) {
	baseIP, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, err
	}

	if baseIP.To4() == nil {
		return nil, fmt.Errorf("%w: %s is not IPv4", ErrInvalidAddress, baseIP)
	}

	ones, _ := ipnet.Mask.Size()

	var ips []string

	for currentIP := baseIP.Mask(ipnet.Mask); ipnet.Contains(currentIP); incIP(currentIP) {
		if ones <= 30 {
			if currentIP.Equal(ipnet.IP) || isBroadcast(currentIP, ipnet) {
				continue
			}
		}

		ips = append(ips, currentIP.String())
	}

	return ips, nil
}

func expandRange(target string) ([]string, error) {
	startPart, endPart, _ := strings.Cut(target, "-")

	start, err := parseIPv4(startPart)
	if err != nil {
		return nil, err
	}

	var end netip.Addr

	if strings.Contains(endPart, ".") {
		end, err = parseIPv4(endPart)
		if err != nil {
			return nil, err
		}
	} else {
		// Short form: the end is just the last octet of the start address.
		octet, err := strconv.Atoi(endPart)
		if err != nil || octet < 0 || octet > 255 {
			return nil, fmt.Errorf("%w: range end %q is not an octet", ErrInvalidAddress, endPart)
		}

		b := start.As4()
		b[3] = byte(octet)
		end = netip.AddrFrom4(b)
	}

	if end.Less(start) {
		return nil, fmt.Errorf("%w: %s > %s", ErrRangeReversed, start, end)
	}

	var ips []string

	for a := start; !end.Less(a); a = a.Next() {
		ips = append(ips, a.String())
	}

	return ips, nil
}

func parseIPv4(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}

	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%w: %q is not IPv4", ErrInvalidAddress, s)
	}

	return addr, nil
}

// incIP increments an IP address in place.
func incIP(ip net.IP) {
	for i := len(ip) - 1; i >= 0; i-- {
		ip[i]++
		if ip[i] != 0 {
			break
		}
	}
}

// isBroadcast checks if an IP is the broadcast address of a network.
func isBroadcast(ip net.IP, ipnet *net.IPNet) bool {
	broadcast := make(net.IP, len(ip))
	for i := range ip {
		broadcast[i] = ipnet.IP[i] | ^ipnet.Mask[i]
	}

	return ip.Equal(broadcast)
}
