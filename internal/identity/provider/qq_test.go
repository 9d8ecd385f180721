package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newQQServer(t *testing.T, infoRet int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2.0/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		if r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		if r.Form.Get("client_id") != "app-id" || r.Form.Get("client_secret") != "app-secret" {
			t.Errorf("client credentials = %q/%q", r.Form.Get("client_id"), r.Form.Get("client_secret"))
		}
		if r.Form.Get("grant_type") != "authorization_code" {
			t.Errorf("grant_type = %q", r.Form.Get("grant_type"))
		}
		if r.Form.Get("fmt") != "json" {
			t.Errorf("fmt = %q, want json", r.Form.Get("fmt"))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "at-1", "expires_in": 7776000, "refresh_token": "rt-1",
		})
	})
	mux.HandleFunc("/oauth2.0/me", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != "at-1" {
			t.Errorf("me access_token = %q", r.URL.Query().Get("access_token"))
		}
		_, _ = w.Write([]byte(`{"client_id":"app-id","openid":"OPENID-42"}`))
	})
	mux.HandleFunc("/user/get_user_info", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("openid") != "OPENID-42" || q.Get("oauth_consumer_key") != "app-id" {
			t.Errorf("get_user_info query = %v", q)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ret": infoRet, "msg": "", "nickname": "Tom", "figureurl_qq": "http://q.qlogo.cn/tom",
		})
	})
	return httptest.NewServer(mux)
}

func TestQQ_ExchangeCode(t *testing.T) {
	srv := newQQServer(t, 0)
	defer srv.Close()

	q := NewQQ("app-id", "app-secret", "http://localhost/callback", srv.URL)
	ident, err := q.ExchangeCode(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}
	if ident.ExternalID != "OPENID-42" {
		t.Errorf("ExternalID = %q, want OPENID-42", ident.ExternalID)
	}
	if ident.DisplayName != "Tom" {
		t.Errorf("DisplayName = %q, want Tom", ident.DisplayName)
	}
	if ident.AvatarURL != "http://q.qlogo.cn/tom" {
		t.Errorf("AvatarURL = %q", ident.AvatarURL)
	}
}

func TestQQ_ExchangeCode_BadCode(t *testing.T) {
	srv := newQQServer(t, 0)
	defer srv.Close()

	q := NewQQ("app-id", "app-secret", "", srv.URL)
	if _, err := q.ExchangeCode(context.Background(), "bad-code"); err == nil {
		t.Fatal("want error for rejected code")
	}
}

func TestQQ_ExchangeCode_UserInfoError(t *testing.T) {
	srv := newQQServer(t, 100030)
	defer srv.Close()

	q := NewQQ("app-id", "app-secret", "", srv.URL)
	_, err := q.ExchangeCode(context.Background(), "good-code")
	if err == nil || !strings.Contains(err.Error(), "100030") {
		t.Fatalf("want get_user_info error, got %v", err)
	}
}

func TestQQ_AuthCodeURL(t *testing.T) {
	q := NewQQ("app-id", "", "http://localhost/callback", "")
	u := q.AuthCodeURL("state-1")
	if !strings.HasPrefix(u, DefaultQQBaseURL+"/oauth2.0/authorize?") {
		t.Errorf("AuthCodeURL = %q", u)
	}
	if !strings.Contains(u, "state=state-1") || !strings.Contains(u, "client_id=app-id") {
		t.Errorf("AuthCodeURL missing params: %q", u)
	}
}
