// utilitário pequeno para formatação dos valores numéricos dos headers.
// Evita puxar fmt só para formatação simples.

package ratelimit

import "strconv"

func formatInt(v int) string { return strconv.Itoa(v) }

func formatInt64(v int64) string { return strconv.FormatInt(v, 10) }
