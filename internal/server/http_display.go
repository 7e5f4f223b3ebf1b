package server

import "resumegate/internal/utils"

// displayServerInfo logs the routes and limits the server starts with
func (s *Server) displayServerInfo() {
	s.Logger.Info("Routes registered",
		"health", "GET /health",
		"stats", "GET /stats",
		"resume_intake", "POST /api/analyze-resume",
		"sheet_append", "POST,OPTIONS /api/sheets-append")

	if s.Passkeys == nil || s.Passkeys.Passkey() == "" {
		s.Logger.Warn("No intake passkey configured; every upload will be rejected with INVALID_PASSKEY")
	}
	if s.Appender == nil {
		s.Logger.Warn("No sheet backend configured; sheet appends will fail")
	}

	s.Logger.Info("Request limits",
		"upload_limit", describeLimit(s.MaxRequestSize),
		"sheet_body_limit", describeLimit(s.MaxSheetBodySize),
		"allow_origin", s.AllowOrigin)

	if s.RateLimit != nil && s.RateLimit.Enabled {
		s.Logger.Info("Rate limiting enabled",
			"requests_per_min", s.RateLimit.RequestsPerMin,
			"burst", s.RateLimit.BurstCapacity,
			"by_ip", s.RateLimit.ByIP)
	} else {
		s.Logger.Info("Rate limiting disabled")
	}
}

func describeLimit(n int64) string {
	if n <= 0 {
		return "disabled"
	}
	return utils.FormatFileSize(n)
}
