// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chainadaptermock is a hand-written, mockgen-shaped mock of
// chainadapter.Adapter: a gomock.Controller-backed type with an
// EXPECT() recorder per method.
package chainadaptermock

import (
	"reflect"

	"go.uber.org/mock/gomock"

	"github.com/luxfi/grandpa/chainadapter"
	"github.com/luxfi/grandpa/vote"
)

// Adapter is a mock of chainadapter.Adapter.
type Adapter struct {
	ctrl     *gomock.Controller
	recorder *AdapterMockRecorder
}

// AdapterMockRecorder is the mock recorder for Adapter.
type AdapterMockRecorder struct {
	mock *Adapter
}

// NewAdapter creates a new mock instance.
func NewAdapter(ctrl *gomock.Controller) *Adapter {
	m := &Adapter{ctrl: ctrl}
	m.recorder = &AdapterMockRecorder{m}
	return m
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *Adapter) EXPECT() *AdapterMockRecorder {
	return m.recorder
}

// Ancestry mocks base method.
func (m *Adapter) Ancestry(descendant, ancestor vote.BlockInfo) ([]vote.BlockInfo, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Ancestry", descendant, ancestor)
	ret0, _ := ret[0].([]vote.BlockInfo)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Ancestry indicates an expected call of Ancestry.
func (mr *AdapterMockRecorder) Ancestry(descendant, ancestor any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Ancestry", reflect.TypeOf((*Adapter)(nil).Ancestry), descendant, ancestor)
}

// BestChainContaining mocks base method.
func (m *Adapter) BestChainContaining(h vote.BlockInfo) (vote.BlockInfo, bool) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "BestChainContaining", h)
	ret0, _ := ret[0].(vote.BlockInfo)
	ret1, _ := ret[1].(bool)
	return ret0, ret1
}

// BestChainContaining indicates an expected call of BestChainContaining.
func (mr *AdapterMockRecorder) BestChainContaining(h any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "BestChainContaining", reflect.TypeOf((*Adapter)(nil).BestChainContaining), h)
}

// IsEqualOrDescendantOf mocks base method.
func (m *Adapter) IsEqualOrDescendantOf(anc, descendant vote.BlockInfo) bool {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "IsEqualOrDescendantOf", anc, descendant)
	ret0, _ := ret[0].(bool)
	return ret0
}

// IsEqualOrDescendantOf indicates an expected call of IsEqualOrDescendantOf.
func (mr *AdapterMockRecorder) IsEqualOrDescendantOf(anc, descendant any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "IsEqualOrDescendantOf", reflect.TypeOf((*Adapter)(nil).IsEqualOrDescendantOf), anc, descendant)
}

// LastFinalized mocks base method.
func (m *Adapter) LastFinalized() vote.BlockInfo {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "LastFinalized")
	ret0, _ := ret[0].(vote.BlockInfo)
	return ret0
}

// LastFinalized indicates an expected call of LastFinalized.
func (mr *AdapterMockRecorder) LastFinalized() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "LastFinalized", reflect.TypeOf((*Adapter)(nil).LastFinalized))
}

// Header mocks base method.
func (m *Adapter) Header(hash vote.Hash) (vote.BlockHeader, bool) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Header", hash)
	ret0, _ := ret[0].(vote.BlockHeader)
	ret1, _ := ret[1].(bool)
	return ret0, ret1
}

// Header indicates an expected call of Header.
func (mr *AdapterMockRecorder) Header(hash any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Header", reflect.TypeOf((*Adapter)(nil).Header), hash)
}

// Finalize mocks base method.
func (m *Adapter) Finalize(hash vote.Hash, justification vote.Justification) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Finalize", hash, justification)
	ret0, _ := ret[0].(error)
	return ret0
}

// Finalize indicates an expected call of Finalize.
func (mr *AdapterMockRecorder) Finalize(hash, justification any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Finalize", reflect.TypeOf((*Adapter)(nil).Finalize), hash, justification)
}

var _ chainadapter.Adapter = (*Adapter)(nil)
