package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/altovisual/artist-management-sub002/config"
)

func TestDecodeParticipants(t *testing.T) {
	data := []byte(`[
		{"id": 7, "name": "Ana", "email": "ana@x.com", "phone": 3001234567, "role": "Composer", "percentage": 50.5, "ipi": "123"},
		{"id": "b-uuid", "name": null, "email": null, "phone": null, "role": null, "percentage": null}
	]`)

	got, err := decodeParticipants(data)
	if err != nil {
		t.Fatalf("decodeParticipants failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 participants, got %d", len(got))
	}

	ana := got[0]
	if ana.ID != "7" || ana.Phone != "3001234567" {
		t.Errorf("Expected numeric id and phone as text, got %q %q", ana.ID, ana.Phone)
	}
	if ana.Percentage.String() != "50.5" {
		t.Errorf("Expected percentage 50.5, got %s", ana.Percentage)
	}
	if ana.IPI != "123" {
		t.Errorf("Expected IPI 123, got %q", ana.IPI)
	}

	blank := got[1]
	if blank.ID != "b-uuid" || blank.Name != "" || blank.Email != "" || blank.Phone != "" {
		t.Errorf("Expected nulls as empty strings, got %+v", blank)
	}
	if !blank.Percentage.IsZero() {
		t.Errorf("Expected zero percentage, got %s", blank.Percentage)
	}
}

func TestDecodeParticipantsEmpty(t *testing.T) {
	for _, in := range []string{"", "[]"} {
		got, err := decodeParticipants([]byte(in))
		if err != nil {
			t.Fatalf("decodeParticipants(%q) failed: %v", in, err)
		}
		if len(got) != 0 {
			t.Errorf("Expected no participants for %q, got %d", in, len(got))
		}
	}

	if _, err := decodeParticipants([]byte(`{"id":1}`)); err == nil {
		t.Error("Expected error for a non-array payload")
	}
}

func TestContractGraphQueries(t *testing.T) {
	if !strings.Contains(contractGraphQuery, "t.template_html") {
		t.Error("Expected the template column in the current query")
	}
	if strings.Contains(contractGraphLegacyQuery, "template_html") {
		t.Error("Expected the legacy query to avoid the template column")
	}
	for _, q := range []string{contractGraphQuery, contractGraphLegacyQuery} {
		if !strings.Contains(q, "WHERE c.id = $1") {
			t.Error("Expected a parameterized contract id")
		}
	}
}

func TestNewStoreRequiresURL(t *testing.T) {
	_, err := NewStore(context.Background(), &config.DatabaseConfig{})
	if !IsKind(err, KindConfigMissing) {
		t.Errorf("Expected ConfigMissing, got %v", err)
	}
}

// fakeS3 answers the handful of requests the archive makes
type fakeS3 struct {
	mu   sync.Mutex
	puts map[string]string
}

func (s *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if _, ok := r.URL.Query()["location"]; ok {
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><LocationConstraint xmlns="http://s3.amazonaws.com/doc/2006-03-01/">us-east-1</LocationConstraint>`))
		return
	}
	if r.Method == http.MethodPut {
		s.mu.Lock()
		s.puts[r.URL.Path] = r.Header.Get("Content-Type")
		s.mu.Unlock()
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusMethodNotAllowed)
}

func TestMinioArchive(t *testing.T) {
	s3 := &fakeS3{puts: make(map[string]string)}
	server := httptest.NewServer(s3)
	defer server.Close()

	archive, err := NewMinioArchive(&config.MinioConfig{
		Endpoint:   strings.TrimPrefix(server.URL, "http://"),
		AccessKey:  "test",
		SecretKey:  "testsecret",
		Bucket:     "signatures",
		ExpireDays: 7,
	})
	if err != nil {
		t.Fatalf("NewMinioArchive failed: %v", err)
	}

	url, err := archive.Archive(context.Background(), "ctr-1", "DOC1", makePDF(2048))
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}

	if _, ok := s3.puts["/signatures/signatures/ctr-1/DOC1.pdf"]; !ok {
		t.Errorf("Expected object upload, got %v", s3.puts)
	}
	if !strings.Contains(url, "/signatures/signatures/ctr-1/DOC1.pdf") || !strings.Contains(url, "X-Amz-Signature") {
		t.Errorf("Expected presigned object URL, got %q", url)
	}
}

func TestMinioArchiveCancelledContext(t *testing.T) {
	archive, err := NewMinioArchive(&config.MinioConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "test",
		SecretKey: "test",
		Bucket:    "test",
	})
	if err != nil {
		t.Skip("Could not create MinIO client")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := archive.Archive(ctx, "ctr-1", "DOC1", makePDF(2048)); err == nil {
		t.Error("Expected error with cancelled context")
	}
}

func TestObjectName(t *testing.T) {
	if got := ObjectName("ctr-1", "DOC1"); got != "signatures/ctr-1/DOC1.pdf" {
		t.Errorf("ObjectName() = %q", got)
	}
}
