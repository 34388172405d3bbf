package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/jluxury929-hash/hyper/internal/model"
	"github.com/jluxury929-hash/hyper/internal/prediction"
)

// depositRequest is the body of POST /api/hyper/deposit
type depositRequest struct {
	WalletAddress string          `json:"walletAddress"`
	Amount        decimal.Decimal `json:"amount"`
}

// withdrawRequest is the body of POST /api/hyper/withdraw. A missing or null amount withdraws
// the full principal; an explicit 0 is rejected rather than read as "everything".
type withdrawRequest struct {
	WalletAddress string           `json:"walletAddress"`
	Amount        *decimal.Decimal `json:"amount"`
}

// rebalanceRequest is the body of POST /api/hyper/rebalance
type rebalanceRequest struct {
	WalletAddress string `json:"walletAddress"`
}

type errorResponse struct {
	Success         bool   `json:"success"`
	Error           string `json:"error"`
	Kind            string `json:"kind,omitempty"`
	Details         string `json:"details,omitempty"`
	TransactionHash string `json:"transactionHash,omitempty"`
}

type positionDTO struct {
	Aave       float64 `json:"aave"`
	Uniswap    float64 `json:"uniswap"`
	Compound   float64 `json:"compound"`
	Curve      float64 `json:"curve"`
	Yearn      float64 `json:"yearn"`
	Staking    float64 `json:"staking"`
	AIOptLevel uint8   `json:"aiOptLevel"`
}

type aiModelDTO struct {
	Accuracy   int64 `json:"accuracy"`
	LastUpdate int64 `json:"lastUpdate"`
	Active     bool  `json:"active"`
}

type strategyDTO struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	Protocol   string  `json:"protocol"`
	BaseAPY    float64 `json:"baseAPY"`
	BoostedAPY float64 `json:"boostedAPY"`
	Active     bool    `json:"active"`
	TVL        float64 `json:"tvl"`
	Boost      float64 `json:"boost"`
	TVLShare   float64 `json:"tvlShare"`
}

type metricsResponse struct {
	Success           bool          `json:"success"`
	Principal         float64       `json:"principal"`
	CurrentRewards    float64       `json:"currentRewards"`
	TotalEarned       float64       `json:"totalEarned"`
	AverageAPY        float64       `json:"averageAPY"`
	HourlyRate        float64       `json:"hourlyRate"`
	DailyRate         float64       `json:"dailyRate"`
	WeeklyProjection  float64       `json:"weeklyProjection"`
	MonthlyProjection float64       `json:"monthlyProjection"`
	CatalogAPY        float64       `json:"catalogAPY"`
	Position          positionDTO   `json:"position"`
	AIModel           aiModelDTO    `json:"aiModel"`
	Strategies        []strategyDTO `json:"strategies"`
}

type txResponse struct {
	Success         bool    `json:"success"`
	ID              string  `json:"id"`
	Message         string  `json:"message"`
	TransactionHash string  `json:"transactionHash"`
	BlockNumber     uint64  `json:"blockNumber"`
	Amount          float64 `json:"amount"`
	GasUsed         string  `json:"gasUsed"`
}

type rebalanceResponse struct {
	Success         bool    `json:"success"`
	ID              string  `json:"id"`
	Message         string  `json:"message"`
	TransactionHash string  `json:"transactionHash"`
	BlockNumber     uint64  `json:"blockNumber"`
	NewAPY          float64 `json:"newAPY"`
	Optimization    string  `json:"optimization"`
}

type predictResponse struct {
	Success          bool       `json:"success"`
	PredictedReturns float64    `json:"predictedReturns"`
	TimeHorizon      int        `json:"timeHorizon"`
	HorizonSeconds   int64      `json:"horizonSeconds"`
	Accuracy         int64      `json:"accuracy"`
	AIModel          aiModelDTO `json:"aiModel"`
}

func newMetricsResponse(r model.RewardSnapshot) metricsResponse {
	resp := metricsResponse{
		Success:           true,
		Principal:         r.Principal.InexactFloat64(),
		CurrentRewards:    r.CurrentRewards.InexactFloat64(),
		TotalEarned:       r.TotalEarned.InexactFloat64(),
		AverageAPY:        r.AverageAPY.InexactFloat64(),
		HourlyRate:        r.HourlyRate.InexactFloat64(),
		DailyRate:         r.DailyRate.InexactFloat64(),
		WeeklyProjection:  r.WeeklyProjection.InexactFloat64(),
		MonthlyProjection: r.MonthlyProjection.InexactFloat64(),
		CatalogAPY:        r.CatalogAPY.InexactFloat64(),
		Position: positionDTO{
			Aave:       r.Position.Aave.InexactFloat64(),
			Uniswap:    r.Position.Uniswap.InexactFloat64(),
			Compound:   r.Position.Compound.InexactFloat64(),
			Curve:      r.Position.Curve.InexactFloat64(),
			Yearn:      r.Position.Yearn.InexactFloat64(),
			Staking:    r.Position.Staking.InexactFloat64(),
			AIOptLevel: r.Position.AIOptLevel,
		},
		AIModel:    newAIModelDTO(r.AIModel),
		Strategies: make([]strategyDTO, 0, len(r.Strategies)),
	}
	for _, s := range r.Strategies {
		resp.Strategies = append(resp.Strategies, strategyDTO{
			ID:         s.ID,
			Name:       s.Name,
			Protocol:   s.Protocol.Hex(),
			BaseAPY:    s.BaseAPY.InexactFloat64(),
			BoostedAPY: s.BoostedAPY.InexactFloat64(),
			Active:     s.Active,
			TVL:        s.TVL.InexactFloat64(),
			Boost:      s.Boost.InexactFloat64(),
			TVLShare:   s.TVLShare.InexactFloat64(),
		})
	}
	return resp
}

func newTxResponse(res model.TxResult, message string) txResponse {
	return txResponse{
		Success:         true,
		ID:              res.ID,
		Message:         message,
		TransactionHash: res.TxHash.Hex(),
		BlockNumber:     res.BlockNumber,
		Amount:          res.Amount.InexactFloat64(),
		GasUsed:         strconv.FormatUint(res.GasUsed, 10),
	}
}

func newPredictResponse(p prediction.Prediction) predictResponse {
	return predictResponse{
		Success:          true,
		PredictedReturns: p.PredictedReturns.InexactFloat64(),
		TimeHorizon:      p.HorizonDays,
		HorizonSeconds:   p.HorizonSeconds,
		Accuracy:         p.Model.Accuracy,
		AIModel:          newAIModelDTO(p.Model),
	}
}

func newAIModelDTO(m model.AIModel) aiModelDTO {
	return aiModelDTO{Accuracy: m.Accuracy, LastUpdate: m.LastUpdate, Active: m.Active}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
