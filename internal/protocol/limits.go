// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

package protocol

import "fmt"

// SizeLimit describes one side's (server's or client's) file-size cap.
type SizeLimit struct {
	Enabled bool
	MaxSize int64
}

// EvaluateFileSize merges the server-side and client-side caps and reports
// whether size is acceptable. The effective cap is the minimum of whichever
// side(s) have a cap enabled; if neither side enables a cap, every size
// passes. On rejection the reason names which side(s) participated in the
// binding cap, matching validate_file_size in the original.
func EvaluateFileSize(size int64, server, client SizeLimit) (ok bool, reason string) {
	var cap int64 = -1
	var sides []string

	if server.Enabled {
		cap = server.MaxSize
		sides = append(sides, "服务端")
	}
	if client.Enabled {
		if cap < 0 || client.MaxSize < cap {
			cap = client.MaxSize
		}
		sides = append(sides, "客户端")
	}

	if cap < 0 {
		return true, ""
	}
	if size <= cap {
		return true, ""
	}

	return false, fmt.Sprintf(
		"文件过大 (%s) 超过%s配置的限制 (%s)",
		formatKB(size), joinSides(sides), formatKB(cap),
	)
}

func joinSides(sides []string) string {
	switch len(sides) {
	case 0:
		return "未知"
	case 1:
		return sides[0]
	default:
		return sides[0] + "+" + sides[1]
	}
}

// formatKB renders a byte count as a one-decimal kilobyte string, matching
// the original's "{:.1}KB" formatting.
func formatKB(size int64) string {
	kb := float64(size) / 1024.0
	return fmt.Sprintf("%.1fKB", kb)
}
