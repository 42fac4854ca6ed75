//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Test groups test targets (all, unit, stores).
type Test mg.Namespace

// storePackages hold the backend suites.
var storePackages = []string{
	"./internal/sqlstore/...",
	"./internal/boltstore/...",
	"./internal/mongostore/...",
	"./pkg/store/...",
}

// All runs every test.
func (Test) All() error {
	return sh.RunV(binGo, "test", "-v", "./...")
}

// Unit runs the tests with the server backends switched off.
func (Test) Unit() error {
	env := map[string]string{"MULTIROW_MONGO_URI": ""}
	return sh.RunWithV(env, binGo, "test", "./...")
}

// Stores runs the store suites. Set MULTIROW_MONGO_URI to include MongoDB;
// it must point at a replica set since saves run in transactions.
func (Test) Stores() error {
	if os.Getenv("MULTIROW_MONGO_URI") == "" {
		fmt.Println("MULTIROW_MONGO_URI not set; the MongoDB suite will be skipped.")
	}
	args := append([]string{"test", "-v", "-count=1"}, storePackages...)
	return sh.RunV(binGo, args...)
}
