package market

import (
	"encoding/json"
	"strconv"
	"time"
)

// flexFloat tolerates the aggregator's habit of sending numbers as strings
// (priceUsd) or omitting them entirely.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}

// wirePair mirrors the aggregator's pair shape. Fields routinely go missing;
// normalization decides what is usable.
type wirePair struct {
	ChainID     string `json:"chainId"`
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUsd flexFloat `json:"priceUsd"`
	Volume   struct {
		H1  flexFloat `json:"h1"`
		H24 flexFloat `json:"h24"`
	} `json:"volume"`
	Liquidity struct {
		USD flexFloat `json:"usd"`
	} `json:"liquidity"`
	Txns struct {
		H24 struct {
			Buys  int `json:"buys"`
			Sells int `json:"sells"`
		} `json:"h24"`
	} `json:"txns"`
	Holders       int   `json:"holders"`
	PairCreatedAt int64 `json:"pairCreatedAt"` // ms epoch
}

type searchResponse struct {
	Pairs []wirePair `json:"pairs"`
}

// wireProfile mirrors the token-profile discovery feed.
type wireProfile struct {
	ChainID      string `json:"chainId"`
	TokenAddress string `json:"tokenAddress"`
}

// normalize converts a wire pair into a Snapshot, or reports it unusable.
// Rows without a chain and address are dropped at this boundary rather than
// propagated downstream.
func normalize(p wirePair, now time.Time) (Snapshot, bool) {
	address := p.BaseToken.Address
	if address == "" {
		address = p.PairAddress
	}
	if p.ChainID == "" || address == "" {
		return Snapshot{}, false
	}

	var ageMin float64
	if p.PairCreatedAt > 0 {
		age := now.Sub(time.UnixMilli(p.PairCreatedAt)).Minutes()
		if age > 0 {
			ageMin = age
		}
	}

	return Snapshot{
		Chain:        p.ChainID,
		Address:      address,
		Symbol:       p.BaseToken.Symbol,
		Price:        float64(p.PriceUsd),
		Volume1h:     float64(p.Volume.H1),
		Volume24h:    float64(p.Volume.H24),
		LiquidityUSD: float64(p.Liquidity.USD),
		AgeMinutes:   ageMin,
		TxCount:      p.Txns.H24.Buys + p.Txns.H24.Sells,
		Holders:      p.Holders,
	}, true
}
