// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
//   - WindowStore: janela fixa em memória, shards por xxhash e LRU limitado
//   - BucketStore: token bucket por chave usando golang.org/x/time/rate
//   - RedisWindowStore: janela fixa compartilhada via script Lua no redis
//   - Stats: memória, redis, prometheus e MultiStats
//   - ChanPool: semáforo simples para limite de concorrência
package infra
