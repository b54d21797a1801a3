// Copyright Keboola s.r.o. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"). You may
// not use this file except in compliance with the License. A copy of the
// License is located at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// or in the "license" file accompanying this file. This file is distributed
// on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either
// express or implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package networkutils configures the instance's kernel networking for NAT:
// forwarding sysctls plus the masquerade rules in nat/POSTROUTING.
package networkutils

import (
	"encoding/csv"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/coreos/go-iptables/iptables"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/keboola/nat-instance/pkg/iptableswrapper"
	"github.com/keboola/nat-instance/pkg/netlinkwrapper"
	"github.com/keboola/nat-instance/pkg/procsyswrapper"
	"github.com/keboola/nat-instance/pkg/utils/logger"
)

const (
	// secondaryMasqueradeCIDR is the carrier-grade NAT block masqueraded in
	// addition to the VPC CIDRs, so workloads addressed out of 100.64.0.0/10
	// (secondary subnets) reach the internet through this instance as well.
	secondaryMasqueradeCIDR = "100.64.0.0/10"

	// masqueradeMarker prefixes the comment of every nat/POSTROUTING rule this
	// tool owns. Stale-rule cleanup only ever deletes rules carrying it, so
	// rules installed by other agents (docker, firewalld) are left alone.
	masqueradeMarker = "keboola NAT"

	// ephemeralPortRange widens the default local port range so one instance
	// can sustain more concurrent NAT flows.
	ephemeralPortRange = "1024 65535"

	ipv4ForwardingKey   = "net/ipv4/ip_forward"
	localPortRangeKey   = "net/ipv4/ip_local_port_range"
	sendRedirectsKeyFmt = "net/ipv4/conf/%s/send_redirects"

	// number of attempts to find the primary interface by MAC address after boot
	maxAttemptsLinkByMac          = 5
	defaultRetryLinkByMacInterval = 3 * time.Second
)

var log = logger.Get()

// NetworkAPIs defines the instance level network configuration operations.
type NetworkAPIs interface {
	// SetupNATHostNetwork enables forwarding on the primary interface and
	// installs the masquerade rules for the given VPC CIDRs.
	SetupNATHostNetwork(primaryMAC string, vpcV4CIDRs []string) error
}

var _ NetworkAPIs = &linuxNetwork{}

type linuxNetwork struct {
	retryLinkByMacInterval time.Duration

	netLink          netlinkwrapper.NetLink
	procSys          procsyswrapper.ProcSys
	ipTablesProvider func(protocol iptables.Protocol) (iptableswrapper.IPTablesIface, error)
}

// NewNetworkAPIs creates a linuxNetwork object
func NewNetworkAPIs() NetworkAPIs {
	return &linuxNetwork{
		retryLinkByMacInterval: defaultRetryLinkByMacInterval,

		netLink:          netlinkwrapper.NewNetLink(),
		procSys:          procsyswrapper.NewProcSys(),
		ipTablesProvider: iptableswrapper.NewIPTables,
	}
}

func (n *linuxNetwork) SetupNATHostNetwork(primaryMAC string, vpcV4CIDRs []string) error {
	log.Infof("Setting up NAT host network with primaryMAC: %s, vpcV4CIDRs: %v", primaryMAC, vpcV4CIDRs)

	link, err := n.netLink.LinkByMacWithRetry(primaryMAC, n.retryLinkByMacInterval, maxAttemptsLinkByMac)
	if err != nil {
		return errors.Wrapf(err, "setupNATHostNetwork: failed to find the link which uses MAC address %s", primaryMAC)
	}
	primaryIntf := link.Attrs().Name

	if err := n.configureNATSysctls(primaryIntf); err != nil {
		return errors.Wrap(err, "setupNATHostNetwork: failed to configure forwarding sysctls")
	}

	return n.ensureMasqueradeRules(primaryIntf, vpcV4CIDRs)
}

// configureNATSysctls enables IPv4 forwarding, disables ICMP redirects on the
// primary interface and widens the ephemeral port range.
func (n *linuxNetwork) configureNATSysctls(primaryIntf string) error {
	entries := []struct {
		key   string
		value string
	}{
		{ipv4ForwardingKey, "1"},
		{fmt.Sprintf(sendRedirectsKeyFmt, primaryIntf), "0"},
		{localPortRangeKey, ephemeralPortRange},
	}
	for _, entry := range entries {
		if err := n.procSys.Set(entry.key, entry.value); err != nil {
			return errors.Wrapf(err, "failed to set %s to %q", entry.key, entry.value)
		}
		val, _ := n.procSys.Get(entry.key)
		log.Infof("Updated %s to %s", entry.key, strings.TrimSpace(val))
	}
	return nil
}

func (n *linuxNetwork) ensureMasqueradeRules(primaryIntf string, vpcV4CIDRs []string) error {
	ipt, err := n.ipTablesProvider(iptables.ProtocolIPv4)
	if err != nil {
		return errors.Wrap(err, "host network setup: failed to create iptables")
	}

	masqueradeRules, err := n.buildMasqueradeRules(vpcV4CIDRs, primaryIntf, ipt)
	if err != nil {
		return errors.Wrap(err, "host network setup: failed to build masquerade rules")
	}

	return n.updateIptablesRules(masqueradeRules, ipt)
}

// buildMasqueradeRules returns the desired nat/POSTROUTING rules — one
// MASQUERADE rule per VPC CIDR plus one for the secondary CIDR — followed by
// the stale rules from earlier runs that must go.
func (n *linuxNetwork) buildMasqueradeRules(vpcV4CIDRs []string, primaryIntf string, ipt iptableswrapper.IPTablesIface) ([]iptablesRule, error) {
	type masqCIDR struct {
		cidr    string
		comment string
	}
	var allCIDRs []masqCIDR
	for _, cidr := range vpcV4CIDRs {
		log.Debugf("Adding masquerade rule for VPC CIDR %s", cidr)
		allCIDRs = append(allCIDRs, masqCIDR{cidr: cidr, comment: masqueradeMarker + ", VPC CIDR"})
	}
	log.Debugf("Adding masquerade rule for secondary CIDR %s", secondaryMasqueradeCIDR)
	allCIDRs = append(allCIDRs, masqCIDR{cidr: secondaryMasqueradeCIDR, comment: masqueradeMarker + ", secondary CIDR"})

	log.Debugf("Total CIDRs to masquerade - %d", len(allCIDRs))
	hasRandomFully := ipt.HasRandomFully()

	var iptableRules []iptablesRule
	for i, cidr := range allCIDRs {
		rule := []string{
			"-s", cidr.cidr, "-o", primaryIntf,
			"-m", "comment", "--comment", cidr.comment,
			"-j", "MASQUERADE",
		}
		if hasRandomFully {
			rule = append(rule, "--random-fully")
		}
		log.Debugf("Setup NAT host network: iptables -t nat -A POSTROUTING -s %s -o %s -j MASQUERADE", cidr.cidr, primaryIntf)
		iptableRules = append(iptableRules, iptablesRule{
			name:        fmt.Sprintf("[%d] masquerade outbound traffic from %s", i, cidr.cidr),
			shouldExist: true,
			table:       "nat",
			chain:       "POSTROUTING",
			rule:        rule,
		})
	}

	staleRules, err := computeStaleMasqueradeRules(ipt, "nat", "POSTROUTING", iptableRules)
	if err != nil {
		return []iptablesRule{}, err
	}
	iptableRules = append(iptableRules, staleRules...)

	log.Debugf("iptableRules: %v", iptableRules)
	return iptableRules, nil
}

func (n *linuxNetwork) updateIptablesRules(iptableRules []iptablesRule, ipt iptableswrapper.IPTablesIface) error {
	for _, rule := range iptableRules {
		log.Debugf("execute iptable rule : %s", rule.name)

		exists, err := ipt.Exists(rule.table, rule.chain, rule.rule...)
		log.Debugf("rule %v exists %v, err %v", rule, exists, err)
		if err != nil {
			log.Errorf("host network setup: failed to check existence of %v, %v", rule, err)
			return errors.Wrapf(err, "host network setup: failed to check existence of %v", rule)
		}

		if !exists && rule.shouldExist {
			err = ipt.Append(rule.table, rule.chain, rule.rule...)
			if err != nil {
				log.Errorf("host network setup: failed to add %v, %v", rule, err)
				return errors.Wrapf(err, "host network setup: failed to add %v", rule)
			}
		} else if exists && !rule.shouldExist {
			err = ipt.Delete(rule.table, rule.chain, rule.rule...)
			if err != nil {
				log.Errorf("host network setup: failed to delete %v, %v", rule, err)
				return errors.Wrapf(err, "host network setup: failed to delete %v", rule)
			}
		}
	}
	return nil
}

// listCurrentMasqueradeRules returns the rules in table/chain that carry the
// masqueradeMarker comment, as delete candidates.
func listCurrentMasqueradeRules(ipt iptableswrapper.IPTablesIface, table, chain string) ([]iptablesRule, error) {
	var toClear []iptablesRule
	log.Debugf("Setup NAT host network: loading existing iptables %s/%s rules owned by this tool", table, chain)
	rules, err := ipt.List(table, chain)
	if err != nil {
		return nil, errors.Wrapf(err, "host network setup: failed to list iptables %s chain %s", table, chain)
	}
	for i, rule := range rules {
		r := csv.NewReader(strings.NewReader(rule))
		r.Comma = ' '
		ruleSpec, err := r.Read()
		if err != nil {
			return nil, errors.Wrapf(err, "host network setup: failed to parse iptables %s chain %s rule %s", table, chain, rule)
		}
		if !containsMasqueradeMarker(ruleSpec) {
			continue
		}
		log.Debugf("host network setup: found potentially stale masquerade rule for chain %s: %v", chain, ruleSpec)
		toClear = append(toClear, iptablesRule{
			name:        fmt.Sprintf("[%d] %s", i, chain),
			shouldExist: false, // To trigger ipt.Delete for stale rules
			table:       table,
			chain:       chain,
			rule:        ruleSpec[2:], //drop action and chain name
		})
	}
	return toClear, nil
}

func computeStaleMasqueradeRules(ipt iptableswrapper.IPTablesIface, table, chain string, newRules []iptablesRule) ([]iptablesRule, error) {
	var staleRules []iptablesRule
	existingRules, err := listCurrentMasqueradeRules(ipt, table, chain)
	if err != nil {
		return []iptablesRule{}, errors.Wrapf(err, "host network setup: failed to list masquerade rules from table %s chain %s", table, chain)
	}
	for _, staleRule := range existingRules {
		keepRule := false
		for _, newRule := range newRules {
			if staleRule.chain == newRule.chain && reflect.DeepEqual(newRule.rule, staleRule.rule) {
				log.Debugf("Setup NAT host network: active rule found: %s", staleRule)
				keepRule = true
				break
			}
		}
		if !keepRule {
			log.Debugf("Setup NAT host network: stale rule found: %s", staleRule)
			staleRules = append(staleRules, staleRule)
		}
	}
	return staleRules, nil
}

// containsMasqueradeMarker reports whether a parsed rulespec carries this
// tool's comment marker.
func containsMasqueradeMarker(ruleSpec []string) bool {
	idx := lo.IndexOf(ruleSpec, "--comment")
	return idx >= 0 && idx+1 < len(ruleSpec) && strings.HasPrefix(ruleSpec[idx+1], masqueradeMarker)
}

type iptablesRule struct {
	name         string
	shouldExist  bool
	table, chain string
	rule         []string
}

func (r iptablesRule) String() string {
	return fmt.Sprintf("%s/%s rule %s shouldExist %v rule %v", r.table, r.chain, r.name, r.shouldExist, r.rule)
}
