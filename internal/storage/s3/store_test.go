package s3

import (
	"context"
	"testing"
)

func TestObjectKeyAppliesPrefix(t *testing.T) {
	store := &ArtifactStore{bucket: "artifacts", prefix: "querydesk"}
	key, err := store.objectKey("results/exec-1.parquet")
	if err != nil {
		t.Fatalf("objectKey: %v", err)
	}
	if key != "querydesk/results/exec-1.parquet" {
		t.Fatalf("key = %q", key)
	}

	bare := &ArtifactStore{bucket: "artifacts"}
	key, err = bare.objectKey("/results/exec-1.parquet")
	if err != nil {
		t.Fatalf("objectKey: %v", err)
	}
	if key != "results/exec-1.parquet" {
		t.Fatalf("key = %q", key)
	}
}

func TestObjectKeyRejectsTraversal(t *testing.T) {
	store := &ArtifactStore{bucket: "artifacts"}
	for _, key := range []string{"", "   ", "..", "../secrets", "results/../../etc/passwd"} {
		if _, err := store.objectKey(key); err == nil {
			t.Fatalf("objectKey(%q) should fail", key)
		}
	}
}

func TestNormalizePrefix(t *testing.T) {
	cases := map[string]string{
		"":            "",
		"  ":          "",
		"/querydesk/": "querydesk",
		"a/b/":        "a/b",
		"..":          "",
	}
	for in, want := range cases {
		if got := normalizePrefix(in); got != want {
			t.Fatalf("normalizePrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveEndpoint(t *testing.T) {
	cases := []struct {
		raw     string
		useSSL  bool
		want    string
		secure  bool
		wantErr bool
	}{
		{raw: "minio.local:9000", want: "minio.local:9000"},
		{raw: "minio.local:9000", useSSL: true, want: "minio.local:9000", secure: true},
		{raw: "http://minio.local:9000", useSSL: true, want: "minio.local:9000", secure: false},
		{raw: "https://s3.example.com", want: "s3.example.com", secure: true},
		{raw: "ftp://minio.local", wantErr: true},
		{raw: "   ", wantErr: true},
	}
	for _, tc := range cases {
		host, secure, err := resolveEndpoint(tc.raw, tc.useSSL)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("resolveEndpoint(%q) should fail", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("resolveEndpoint(%q): %v", tc.raw, err)
		}
		if host != tc.want || secure != tc.secure {
			t.Fatalf("resolveEndpoint(%q) = %q/%v, want %q/%v", tc.raw, host, secure, tc.want, tc.secure)
		}
	}
}

func TestNewRequiresBucketAndEndpoint(t *testing.T) {
	if _, err := New(context.Background(), Config{Endpoint: "minio.local:9000"}); err == nil {
		t.Fatal("expected missing bucket error")
	}
	if _, err := New(context.Background(), Config{Bucket: "artifacts"}); err == nil {
		t.Fatal("expected missing endpoint error")
	}
}
