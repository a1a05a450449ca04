// Copyright (c) 2023 BVK Chaitanya

package daemonize

import "testing"

func TestIsChild(t *testing.T) {
	const key = "PRICEBOT_DAEMONIZE_TEST"

	t.Setenv(key, "")
	if IsChild(key) {
		t.Fatalf("want parent without the env key")
	}
	t.Setenv(key, "1234")
	if !IsChild(key) {
		t.Fatalf("want child with the env key")
	}
}
