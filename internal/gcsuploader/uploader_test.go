package gcsuploader

import "testing"

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://reports/snapshots/2024-01-02/abc.json", "reports", "snapshots/2024-01-02/abc.json", false},
		{"gs://reports/a.png", "reports", "a.png", false},
		{"s3://reports/a.png", "", "", true},
		{"gs://reports", "", "", true},
		{"gs://reports/", "", "", true},
		{"gs:///a.png", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseURI(%q) = %q, %q", tt.uri, bucket, object)
			}
		})
	}
}

func TestObjectURI_RoundTrip(t *testing.T) {
	uri := ObjectURI("reports", "snapshots/x.json")
	if uri != "gs://reports/snapshots/x.json" {
		t.Errorf("unexpected URI %q", uri)
	}
	bucket, object, err := ParseURI(uri)
	if err != nil || bucket != "reports" || object != "snapshots/x.json" {
		t.Errorf("ParseURI(%q) = %q, %q, %v", uri, bucket, object, err)
	}
}
