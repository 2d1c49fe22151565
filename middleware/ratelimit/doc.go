// Package ratelimit fornece adapters HTTP (net/http) para rate limit e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (validação da policy, decisão, acquire/timeout) sem net/http
//   - infra: janela fixa em memória, token bucket, redis, stats e semáforo
//   - ratelimit (este pacote): middlewares HTTP + extração de chave + tradução para status/headers
//
// Fluxo em cada rota:
//
//  1. Extrai a chave do cliente (header/X-Forwarded-For/X-Real-IP, ou "unknown")
//  2. Chama a camada application com a policy da rota
//  3. Se bloqueado, responde 429 {"success":false,"error":"Rate limit exceeded"}
//     (ou 503 no limite de concorrência)
//  4. Se permitido, chama o próximo handler
package ratelimit
