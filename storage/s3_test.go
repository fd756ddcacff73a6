package storage

import (
	"context"
	"testing"
)

func TestNewPublisherValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing bucket", Config{Region: "us-east-1", AccessKeyID: "k", SecretAccessKey: "s"}},
		{"missing region", Config{Bucket: "b", AccessKeyID: "k", SecretAccessKey: "s"}},
		{"missing credentials", Config{Bucket: "b", Region: "us-east-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPublisher(context.Background(), tt.cfg); err == nil {
				t.Error("NewPublisher() error = nil, want validation failure")
			}
		})
	}
}

func TestImageKey(t *testing.T) {
	tests := []struct {
		name  string
		slug  string
		id    int64
		order int
		ext   string
		want  string
	}{
		{"basic", "tejidos-de-taquile", 42, 0, ".jpg", "images/tejidos-de-taquile/42_0.jpg"},
		{"later order", "tejidos-de-taquile", 42, 3, ".png", "images/tejidos-de-taquile/42_3.png"},
		{"extension without dot", "expo", 7, 1, "webp", "images/expo/7_1.webp"},
		{"empty slug falls back", "", 9, 0, ".jpg", "images/sin-titulo/9_0.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ImageKey(tt.slug, tt.id, tt.order, tt.ext); got != tt.want {
				t.Errorf("ImageKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPublicURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		key  string
		want string
	}{
		{
			name: "aws default",
			cfg:  Config{Bucket: "runa", Region: "us-east-1"},
			key:  "images/a/1_0.jpg",
			want: "https://runa.s3.us-east-1.amazonaws.com/images/a/1_0.jpg",
		},
		{
			name: "explicit public base",
			cfg:  Config{Bucket: "runa", Region: "sfo3", PublicBaseURL: "https://cdn.example.com/"},
			key:  "images/a/1_0.jpg",
			want: "https://cdn.example.com/images/a/1_0.jpg",
		},
		{
			name: "path style endpoint",
			cfg:  Config{Bucket: "runa", Region: "us-east-1", Endpoint: "http://localhost:9000", UsePathStyle: true},
			key:  "images/a/1_0.jpg",
			want: "http://localhost:9000/runa/images/a/1_0.jpg",
		},
		{
			name: "virtual hosted endpoint",
			cfg:  Config{Bucket: "runa", Region: "sfo3", Endpoint: "https://sfo3.digitaloceanspaces.com"},
			key:  "images/a/1_0.jpg",
			want: "https://runa.sfo3.digitaloceanspaces.com/images/a/1_0.jpg",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Publisher{bucket: tt.cfg.Bucket, config: tt.cfg}
			if got := p.PublicURL(tt.key); got != tt.want {
				t.Errorf("PublicURL(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}
