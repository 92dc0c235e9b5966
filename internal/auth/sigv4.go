package auth

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog/log"

	"github.com/protogate/protogate/internal/core"
)

// SigV4 signs requests with AWS Signature Version 4. Credentials come
// from the standard AWS chain (environment, shared credentials file,
// IAM role) loaded once at construction; the SDK caches and refreshes
// them internally, so Inject stays free of per-request state.
//
// Only meaningful in front of an HTTP adapter: the signature is
// computed over the request's method, URL, headers, and payload hash.
type SigV4 struct {
	credentials aws.CredentialsProvider
	signer      *v4.Signer
	service     string
	region      string
	host        string
	configured  bool
}

// NewSigV4 loads AWS credentials from the default chain. A provider is
// returned even when credentials are unavailable; Inject then fails
// with a clear error instead of sending an unsigned request.
func NewSigV4(service, region, host string) *SigV4 {
	s := &SigV4{
		signer:  v4.NewSigner(),
		service: service,
		region:  region,
		host:    host,
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		log.Warn().Err(err).Msg("failed to load AWS config for sigv4 auth")
		return s
	}
	creds, err := cfg.Credentials.Retrieve(context.Background())
	if err != nil || creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		log.Debug().Msg("no AWS credentials available for sigv4 auth")
		return s
	}

	s.credentials = cfg.Credentials
	s.configured = true
	log.Info().Str("service", service).Str("region", region).Msg("sigv4 auth configured")
	return s
}

// Name returns "sigv4".
func (*SigV4) Name() string { return "sigv4" }

// IsConfigured reports whether credentials were found.
func (s *SigV4) IsConfigured() bool { return s.configured }

// Inject computes the SigV4 signature for the request and copies the
// resulting Authorization and X-Amz-* headers onto a request copy.
func (s *SigV4) Inject(ctx context.Context, req *core.Request) (*core.Request, error) {
	if !s.configured {
		return nil, fmt.Errorf("sigv4 auth: no AWS credentials available")
	}

	target := req.Target
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		if s.host == "" {
			return nil, fmt.Errorf("sigv4 auth: relative target %q and no host configured", target)
		}
		if !strings.HasPrefix(target, "/") {
			target = "/" + target
		}
		target = "https://" + s.host + target
	}

	method := strings.ToUpper(req.Method)
	if method == "" || method == "QUERY" || method == "SEARCH" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequest(method, target, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("sigv4 auth: build request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	creds, err := s.credentials.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("sigv4 auth: retrieve credentials: %w", err)
	}

	payloadHash := fmt.Sprintf("%x", sha256.Sum256(req.Body))
	if err := s.signer.SignHTTP(ctx, creds, httpReq, payloadHash, s.service, s.region, time.Now()); err != nil {
		return nil, fmt.Errorf("sigv4 auth: sign: %w", err)
	}

	out := req.Clone()
	for k := range httpReq.Header {
		out.SetHeader(k, httpReq.Header.Get(k))
	}
	return out, nil
}
