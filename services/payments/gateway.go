package main

import (
	"context"
	"log"
)

// PaymentGateway abstrai a integração com o gateway de pagamento externo.
// O gateway real devolve o desfecho por webhook; aqui o desfecho é reportado
// de forma síncrona e alimentado no mesmo caminho de callback.
type PaymentGateway interface {
	Authorize(ctx context.Context, transactionRef string, amount int) (PaymentStatus, error)
}

// SimulatedGateway implementa PaymentGateway aprovando toda autorização
type SimulatedGateway struct{}

// NewSimulatedGateway cria uma nova instância de SimulatedGateway
func NewSimulatedGateway() *SimulatedGateway {
	return &SimulatedGateway{}
}

// Authorize aprova a transação imediatamente
func (g *SimulatedGateway) Authorize(ctx context.Context, transactionRef string, amount int) (PaymentStatus, error) {
	log.Printf("💳 [GATEWAY] Authorized: TransactionRef=%s | Amount=%d", transactionRef, amount)
	return PaymentStatusSuccess, nil
}
