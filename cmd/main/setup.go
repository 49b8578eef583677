package main

import (
	"strings"

	"candle-replay/src/data_source/twelvedata"
	"candle-replay/src/interfaces"
	"candle-replay/src/logger"
	"candle-replay/src/models"
	"candle-replay/src/network"
	"candle-replay/src/storage"
)

// -----------------------------------------------------------------------------

// setupLedger builds and initializes the configured ledger stores. It returns
// nil when nothing is configured.
func setupLedger(config *models.MConfig, appLogger *logger.Logger) (interfaces.ILedgerStore, error) {
	stores, err := storage.NewLedgerStore(config, logger.NewLogger(config, "LedgerStore"))
	if err != nil {
		return nil, err
	}
	if len(stores) == 0 {
		appLogger.Info("No ledger store configured, closed positions are kept in memory only")
		return nil, nil
	}

	if err := stores.Initialize(); err != nil {
		stores.Close()
		return nil, err
	}
	appLogger.Info("Ledger stores ready (%d)", len(stores))
	return stores, nil
}

// -----------------------------------------------------------------------------

// setupNetwork initializes the network manager
func setupNetwork(config *models.MConfig) interfaces.INetworkManager {
	networkLogger := logger.NewLogger(config, "NetworkManager")
	return network.NewAsyncNetworkManager(config, networkLogger)
}

// -----------------------------------------------------------------------------

// setupProvider returns the market data provider for /api/load_data, or nil
// when none is configured.
func setupProvider(config *models.MConfig, netMgr interfaces.INetworkManager, appLogger *logger.Logger) interfaces.IDataProvider {
	switch strings.ToLower(config.Provider.Name) {
	case "twelvedata":
		return twelvedata.NewTwelveDataSource(config, netMgr, logger.NewLogger(config, "TwelveData"))
	case "", "none":
		appLogger.Info("No data provider configured, /api/load_data is disabled")
	default:
		appLogger.Warning("Unknown data provider in config: %s", config.Provider.Name)
	}
	return nil
}

// -----------------------------------------------------------------------------

func setupCandleStore(config *models.MConfig) interfaces.ICandleSource {
	return storage.NewFileCandleStore(config.Replay.DataDir, logger.NewLogger(config, "CandleStore"))
}
