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

package mock_iptableswrapper

import (
	"fmt"
	"reflect"
	"strings"
)

type MockIptables struct {
	// DataplaneState is a map from table name to chain name to slice of rulespecs
	DataplaneState map[string]map[string][][]string
}

type IptErrNotExists struct{}

func (e *IptErrNotExists) Error() string {
	// ref https://github.com/coreos/go-iptables/blob/main/iptables/iptables.go#L52
	return "does not exists"
}

// ref https://github.com/coreos/go-iptables/blob/v0.8.0/iptables/iptables.go#L56
func (e *IptErrNotExists) IsNotExist() bool {
	return true
}

func NewMockIptables() *MockIptables {
	return &MockIptables{DataplaneState: map[string]map[string][][]string{}}
}

func (ipt *MockIptables) Exists(table, chainName string, rulespec ...string) (bool, error) {
	chain := ipt.DataplaneState[table][chainName]
	for _, r := range chain {
		if reflect.DeepEqual(rulespec, r) {
			return true, nil
		}
	}
	return false, nil
}

func (ipt *MockIptables) Append(table, chain string, rulespec ...string) error {
	if ipt.DataplaneState[table] == nil {
		ipt.DataplaneState[table] = map[string][][]string{}
	}
	ipt.DataplaneState[table][chain] = append(ipt.DataplaneState[table][chain], rulespec)
	return nil
}

func (ipt *MockIptables) Delete(table, chainName string, rulespec ...string) error {
	chain := ipt.DataplaneState[table][chainName]
	updatedChain := chain[:0]
	found := false
	for _, r := range chain {
		if !found && reflect.DeepEqual(rulespec, r) {
			found = true
			continue
		}
		updatedChain = append(updatedChain, r)
	}
	if !found {
		return &IptErrNotExists{}
	}
	ipt.DataplaneState[table][chainName] = updatedChain
	return nil
}

func (ipt *MockIptables) List(table, chain string) ([]string, error) {
	var rules []string
	chainContents := ipt.DataplaneState[table][chain]
	for _, ruleSpec := range chainContents {
		sanitizedRuleSpec := []string{"-A", chain}
		for _, item := range ruleSpec {
			if strings.Contains(item, " ") {
				item = fmt.Sprintf("%q", item)
			}
			sanitizedRuleSpec = append(sanitizedRuleSpec, item)
		}
		rules = append(rules, strings.Join(sanitizedRuleSpec, " "))
	}
	return rules, nil
}

func (ipt *MockIptables) HasRandomFully() bool {
	// TODO: Work out how to write a test case for this
	return true
}
