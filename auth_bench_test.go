package authcore

import (
	"context"
	"fmt"
	"testing"
)

const benchEmail = "bench@example.com"

func benchEngine(b *testing.B) *harness {
	b.Helper()
	h := newHarness(b, func(c *Config) {
		c.Metrics.Enabled = false
	})
	h.seedUser(b, benchEmail, "Secret1!")
	return h
}

func BenchmarkEngine(b *testing.B) {
	ctx := context.Background()

	b.Run("ValidateAccess", func(b *testing.B) {
		h := benchEngine(b)
		res, err := h.engine.Login(ctx, RoleUser, benchEmail, "Secret1!")
		if err != nil {
			b.Fatal(err)
		}
		b.ReportAllocs()
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				if _, err := h.engine.ValidateAccess(res.AccessToken); err != nil {
					b.Error(err)
					return
				}
			}
		})
	})

	b.Run("RefreshChain", func(b *testing.B) {
		h := benchEngine(b)
		res, err := h.engine.Login(ctx, RoleUser, benchEmail, "Secret1!")
		if err != nil {
			b.Fatal(err)
		}
		token := res.RefreshToken
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			next, err := h.engine.Refresh(ctx, token)
			if err != nil {
				b.Fatal(err)
			}
			token = next.RefreshToken
		}
	})

	b.Run("LoginLogout", func(b *testing.B) {
		h := benchEngine(b)
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			res, err := h.engine.Login(ctx, RoleUser, benchEmail, "Secret1!")
			if err != nil {
				b.Fatal(err)
			}
			if err := h.engine.Logout(ctx, res.ExternalUUID); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("IssueAndVerifyCode", func(b *testing.B) {
		h := benchEngine(b)
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			email := fmt.Sprintf("code%d@example.com", i)
			code := h.issueCode(b, RoleUser, email)
			if err := h.engine.VerifyCode(ctx, RoleUser, email, code); err != nil {
				b.Fatal(err)
			}
		}
	})
}
