package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxErrorBodyBytes はエラーレスポンスから読み取る最大バイト数。
const maxErrorBodyBytes = 4096

// SupabaseStore はSupabase StorageのREST APIを使用するObjectStore実装。
// service roleキーで認証するため、サーバー側でのみ使用すること。
type SupabaseStore struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // https://<project>.supabase.co/storage/v1
	serviceKey string
	bucket     string
}

// NewSupabaseStore はSupabaseStoreを生成する。
// projectURLはSupabaseプロジェクトのURL（例: https://xyz.supabase.co）。
func NewSupabaseStore(httpClient *http.Client, logger *slog.Logger, projectURL, serviceKey, bucket string) *SupabaseStore {
	return &SupabaseStore{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimSuffix(projectURL, "/") + "/storage/v1",
		serviceKey: serviceKey,
		bucket:     bucket,
	}
}

type signRequest struct {
	ExpiresIn int            `json:"expiresIn"`
	Transform *signTransform `json:"transform,omitempty"`
}

type signTransform struct {
	Width   int `json:"width,omitempty"`
	Quality int `json:"quality,omitempty"`
}

type signResponse struct {
	SignedURL string `json:"signedURL"`
}

// supabaseError はSupabase Storageのエラーレスポンス。
// statusCodeは文字列で返される。
type supabaseError struct {
	StatusCode string `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// objectURL はAPIのパスにバケットとエスケープ済みのオブジェクトパスを連結する。
func (s *SupabaseStore) objectURL(prefix, path string) string {
	segments := strings.Split(cleanPath(path), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("%s/%s/%s/%s", s.baseURL, prefix, url.PathEscape(s.bucket), strings.Join(segments, "/"))
}

func (s *SupabaseStore) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("apikey", s.serviceKey)
	return req, nil
}

// SignedURL は署名付きURLを発行する。transformが指定された場合は画像変換付きのURLになる。
func (s *SupabaseStore) SignedURL(ctx context.Context, path string, ttl time.Duration, transform *Transform) (string, error) {
	payload := signRequest{ExpiresIn: int(ttl / time.Second)}
	if transform != nil && (transform.Width > 0 || transform.Quality > 0) {
		payload.Transform = &signTransform{Width: transform.Width, Quality: transform.Quality}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("署名リクエストのエンコードに失敗しました: %w", err)
	}

	req, err := s.newRequest(ctx, http.MethodPost, s.objectURL("object/sign", path), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("署名付きURLの発行に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", s.responseError(resp, "署名付きURLの発行", path)
	}

	var signed signResponse
	if err := json.NewDecoder(resp.Body).Decode(&signed); err != nil {
		return "", fmt.Errorf("署名レスポンスのパースに失敗しました: %w", err)
	}
	if signed.SignedURL == "" {
		return "", errors.New("署名レスポンスにsignedURLが含まれていません")
	}

	if strings.HasPrefix(signed.SignedURL, "http://") || strings.HasPrefix(signed.SignedURL, "https://") {
		return signed.SignedURL, nil
	}
	return s.baseURL + "/" + strings.TrimPrefix(signed.SignedURL, "/"), nil
}

// Upload はオブジェクトをアップロードする。既存オブジェクトは上書きしない。
func (s *SupabaseStore) Upload(ctx context.Context, path, contentType string, body io.Reader, size int64) error {
	req, err := s.newRequest(ctx, http.MethodPost, s.objectURL("object", path), body)
	if err != nil {
		return err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "false")
	req.Header.Set("Cache-Control", "max-age=3600")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("オブジェクトのアップロードに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return s.responseError(resp, "オブジェクトのアップロード", path)
	}
	return nil
}

// Remove はオブジェクトを削除する。
func (s *SupabaseStore) Remove(ctx context.Context, path string) error {
	req, err := s.newRequest(ctx, http.MethodDelete, s.objectURL("object", path), nil)
	if err != nil {
		return err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("オブジェクトの削除に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return s.responseError(resp, "オブジェクトの削除", path)
	}
	return nil
}

// responseError はエラーレスポンスをerrorに変換する。
// Supabase Storageはオブジェクト未検出を400で返すことがあるため、本文のstatusCodeも確認する。
func (s *SupabaseStore) responseError(resp *http.Response, op, path string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	var apiErr supabaseError
	_ = json.Unmarshal(raw, &apiErr)

	if resp.StatusCode == http.StatusNotFound || apiErr.StatusCode == "404" || apiErr.Error == "not_found" {
		return fmt.Errorf("%s: %s: %w", op, path, ErrObjectNotFound)
	}

	s.logger.Error("Supabase Storageがエラーステータスを返しました",
		slog.String("operation", op),
		slog.String("path", path),
		slog.Int("http_status", resp.StatusCode),
		slog.String("message", apiErr.Message),
	)
	return fmt.Errorf("%sに失敗しました（ステータス %d）: %s", op, resp.StatusCode, apiErr.Message)
}
