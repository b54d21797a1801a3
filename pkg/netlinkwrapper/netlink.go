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

// Package netlinkwrapper is a wrapper methods for the netlink package
package netlinkwrapper

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/vishvananda/netlink"

	"github.com/keboola/nat-instance/pkg/utils/logger"
)

var log = logger.Get()

// goNetLink directly wraps methods exposed by the "github.com/vishvananda/netlink" package
type goNetLink interface {
	// LinkList is equivalent to: `ip link show`
	LinkList() ([]netlink.Link, error)
}

var _ goNetLink = &goNetLinkWrapper{}

type goNetLinkWrapper struct{}

func (*goNetLinkWrapper) LinkList() ([]netlink.Link, error) {
	return netlink.LinkList()
}

type NetLink interface {
	goNetLink

	// LinkByMac gets a link object given the device mac
	LinkByMac(mac string) (netlink.Link, error)

	// LinkByMacWithRetry retries to get a link object given the device mac.
	LinkByMacWithRetry(mac string, interval time.Duration, maxAttempts int) (netlink.Link, error)
}

var _ NetLink = &netLink{}

type netLink struct {
	*goNetLinkWrapper
}

// NewNetLink creates a new netLink object
func NewNetLink() NetLink {
	return &netLink{
		goNetLinkWrapper: &goNetLinkWrapper{},
	}
}

func (n *netLink) LinkByMac(mac string) (netlink.Link, error) {
	links, err := n.LinkList()
	if err != nil {
		return nil, err
	}

	for _, link := range links {
		if link.Attrs().HardwareAddr.String() == mac {
			return link, nil
		}
	}
	return nil, fmt.Errorf("link mac %s not found", mac)
}

func (n *netLink) LinkByMacWithRetry(mac string, interval time.Duration, maxAttempts int) (netlink.Link, error) {
	var lastErr error
	for round := 1; round <= maxAttempts; round++ {
		if round > 1 {
			time.Sleep(interval)
		}
		link, err := n.LinkByMac(mac)
		if err != nil {
			lastErr = errors.Wrapf(err, "attempt %d/%d", round, maxAttempts)
			log.Debugf(lastErr.Error())
			continue
		}
		return link, nil
	}
	return nil, lastErr
}
