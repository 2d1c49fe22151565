package ratelimit

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"execintel-gateway/middleware/ratelimit/domain"
)

// KeyFunc extrai o identificador do cliente de uma request.
type KeyFunc func(r *http.Request) string

// maxHeaderKeyLen limita o tamanho da chave vinda do header configurado.
const maxHeaderKeyLen = 128

// ForwardedKeyFunc é a extração usada pelas rotas da API, que rodam atrás de proxy:
// header configurado -> primeiro IP do X-Forwarded-For -> X-Real-IP -> "unknown".
//
// Todo cliente sem endereço cai em "unknown" e divide a mesma cota.
func ForwardedKeyFunc(keyHeader string) KeyFunc {
	return func(r *http.Request) string {
		if v := headerKey(r, keyHeader); v != "" {
			return v
		}
		if ip := forwardedFor(r); ip != "" {
			return ip
		}
		if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
		return domain.UnknownClient
	}
}

// DefaultKeyFunc é a extração do gateway: header -> (se confiar) XFF/X-Real-IP -> RemoteAddr.
func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if v := headerKey(r, keyHeader); v != "" {
			return v
		}

		if trustXFF {
			if ip := forwardedFor(r); ip != "" {
				return ip
			}
			if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
				return ip
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if v := strings.TrimSpace(r.RemoteAddr); v != "" {
			return v
		}
		return domain.UnknownClient
	}
}

func headerKey(r *http.Request, keyHeader string) string {
	if keyHeader == "" {
		return ""
	}
	v := strings.TrimSpace(r.Header.Get(keyHeader))
	if len(v) > maxHeaderKeyLen {
		v = v[:maxHeaderKeyLen]
	}
	return v
}

// forwardedFor pega o primeiro IP do X-Forwarded-For (cliente original).
// Valor que não é endereço é ignorado.
func forwardedFor(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return ""
	}
	first, _, _ := strings.Cut(xff, ",")
	return parseIP(first)
}

// parseIP normaliza "ip" ou "ip:porta" para a forma canônica do endereço.
// Retorna "" quando o valor não é um IP.
func parseIP(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if addr, err := netip.ParseAddr(v); err == nil {
		return addr.Unmap().WithZone("").String()
	}
	if ap, err := netip.ParseAddrPort(v); err == nil {
		return ap.Addr().Unmap().WithZone("").String()
	}
	return ""
}
