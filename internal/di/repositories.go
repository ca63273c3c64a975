package di

import (
	"github.com/rs/zerolog"

	"github.com/aristath/pricesentry/internal/clientdata"
	"github.com/aristath/pricesentry/internal/modules/alerts"
	"github.com/aristath/pricesentry/internal/modules/tickers"
)

// InitializeRepositories creates the repositories over the opened databases
func InitializeRepositories(container *Container, log zerolog.Logger) {
	container.TickerRepo = tickers.NewRepository(container.MainDB.Conn(), log)
	container.AlertRepo = alerts.NewRepository(container.MainDB.Conn(), log)
	container.PriceRepo = clientdata.NewRepository(container.ClientDataDB.Conn())
}
