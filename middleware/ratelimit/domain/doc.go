// Package domain define contratos e tipos de domínio para rate limit e concorrência.
//
// Este pacote não depende de net/http nem de implementações concretas.
// Policy, Result e Limiter descrevem a decisão por chave (janela fixa,
// token bucket ou redis); SlotPool descreve o limite de requisições em voo.
package domain
