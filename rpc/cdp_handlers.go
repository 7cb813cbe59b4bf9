package rpc

import (
	"encoding/json"
	"net/http"

	"bollar/gateway/psbt"
	"bollar/rpc/modules"
)

type createParams struct {
	Owner              string               `json:"owner"`
	CollateralSatoshis uint64               `json:"collateralSatoshis"`
	Deposit            modules.DepositProof `json:"deposit"`
}

type mintParams struct {
	Owner       string `json:"owner"`
	CDPID       uint64 `json:"cdpId"`
	AmountCents uint64 `json:"amountCents"`
}

type liquidateParams struct {
	CDPID uint64 `json:"cdpId"`
}

type closeParams struct {
	Owner          string `json:"owner"`
	CDPID          uint64 `json:"cdpId"`
	RepaymentCents uint64 `json:"repaymentCents"`
}

type getParams struct {
	CDPID uint64 `json:"cdpId"`
}

type listParams struct {
	Owner string `json:"owner"`
}

type previewMintParams struct {
	CDPID       uint64 `json:"cdpId"`
	AmountCents uint64 `json:"amountCents"`
}

type previewClosureParams struct {
	Owner          string `json:"owner"`
	CDPID          uint64 `json:"cdpId"`
	RepaymentCents uint64 `json:"repaymentCents"`
}

type psbtValidateParams struct {
	Unsigned psbt.TxSummary `json:"unsigned"`
	Signed   psbt.TxSummary `json:"signed"`
}

type oracleUpdateParams struct {
	PriceCents    uint64 `json:"priceCents"`
	Source        string `json:"source"`
	ConfidencePct uint8  `json:"confidencePct"`
}

func decodeParams(w http.ResponseWriter, req *RPCRequest, out interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected a single parameter object", nil)
		return false
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter", err.Error())
		return false
	}
	return true
}

func (s *Server) handleCreate(w http.ResponseWriter, req *RPCRequest) {
	var params createParams
	if !decodeParams(w, req, &params) {
		return
	}
	record, moduleErr := s.cdp.Create(params.Owner, params.CollateralSatoshis, params.Deposit)
	if moduleErr != nil {
		writeModuleError(w, req.ID, moduleErr)
		return
	}
	writeResult(w, req.ID, record)
}

func (s *Server) handleMint(w http.ResponseWriter, req *RPCRequest) {
	var params mintParams
	if !decodeParams(w, req, &params) {
		return
	}
	result, moduleErr := s.cdp.Mint(params.Owner, params.CDPID, params.AmountCents)
	if moduleErr != nil {
		writeModuleError(w, req.ID, moduleErr)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleLiquidate(w http.ResponseWriter, req *RPCRequest) {
	var params liquidateParams
	if !decodeParams(w, req, &params) {
		return
	}
	result, moduleErr := s.cdp.Liquidate(params.CDPID)
	if moduleErr != nil {
		writeModuleError(w, req.ID, moduleErr)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleClose(w http.ResponseWriter, req *RPCRequest) {
	var params closeParams
	if !decodeParams(w, req, &params) {
		return
	}
	result, moduleErr := s.cdp.Close(params.Owner, params.CDPID, params.RepaymentCents)
	if moduleErr != nil {
		writeModuleError(w, req.ID, moduleErr)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleGet(w http.ResponseWriter, req *RPCRequest) {
	var params getParams
	if !decodeParams(w, req, &params) {
		return
	}
	record, moduleErr := s.cdp.Get(params.CDPID)
	if moduleErr != nil {
		writeModuleError(w, req.ID, moduleErr)
		return
	}
	writeResult(w, req.ID, record)
}

func (s *Server) handleList(w http.ResponseWriter, req *RPCRequest) {
	var params listParams
	if !decodeParams(w, req, &params) {
		return
	}
	records, moduleErr := s.cdp.List(params.Owner)
	if moduleErr != nil {
		writeModuleError(w, req.ID, moduleErr)
		return
	}
	writeResult(w, req.ID, records)
}

func (s *Server) handlePreviewMint(w http.ResponseWriter, req *RPCRequest) {
	var params previewMintParams
	if !decodeParams(w, req, &params) {
		return
	}
	preview, moduleErr := s.cdp.PreviewMint(params.CDPID, params.AmountCents)
	if moduleErr != nil {
		writeModuleError(w, req.ID, moduleErr)
		return
	}
	writeResult(w, req.ID, preview)
}

func (s *Server) handlePreviewClosure(w http.ResponseWriter, req *RPCRequest) {
	var params previewClosureParams
	if !decodeParams(w, req, &params) {
		return
	}
	preview, moduleErr := s.cdp.PreviewClosure(params.Owner, params.CDPID, params.RepaymentCents)
	if moduleErr != nil {
		writeModuleError(w, req.ID, moduleErr)
		return
	}
	writeResult(w, req.ID, preview)
}

func (s *Server) handleScan(w http.ResponseWriter, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	report, moduleErr := s.cdp.Scan()
	if moduleErr != nil {
		writeModuleError(w, req.ID, moduleErr)
		return
	}
	writeResult(w, req.ID, report)
}

func (s *Server) handlePSBTValidate(w http.ResponseWriter, req *RPCRequest) {
	var params psbtValidateParams
	if !decodeParams(w, req, &params) {
		return
	}
	if moduleErr := s.cdp.ValidatePSBT(params.Unsigned, params.Signed); moduleErr != nil {
		writeModuleError(w, req.ID, moduleErr)
		return
	}
	writeResult(w, req.ID, map[string]bool{"valid": true})
}

func (s *Server) handleOracleUpdate(w http.ResponseWriter, req *RPCRequest) {
	var params oracleUpdateParams
	if !decodeParams(w, req, &params) {
		return
	}
	if moduleErr := s.cdp.OracleUpdate(params.PriceCents, params.Source, params.ConfidencePct); moduleErr != nil {
		writeModuleError(w, req.ID, moduleErr)
		return
	}
	writeResult(w, req.ID, map[string]bool{"accepted": true})
}

func (s *Server) handleOracleGet(w http.ResponseWriter, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	result, moduleErr := s.cdp.OracleGet()
	if moduleErr != nil {
		writeModuleError(w, req.ID, moduleErr)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleSystemPause(w http.ResponseWriter, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	result, moduleErr := s.cdp.Pause()
	if moduleErr != nil {
		writeModuleError(w, req.ID, moduleErr)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleSystemResume(w http.ResponseWriter, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	result, moduleErr := s.cdp.Resume()
	if moduleErr != nil {
		writeModuleError(w, req.ID, moduleErr)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleHistory(w http.ResponseWriter, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	history, moduleErr := s.cdp.History()
	if moduleErr != nil {
		writeModuleError(w, req.ID, moduleErr)
		return
	}
	writeResult(w, req.ID, history)
}

func (s *Server) handleFees(w http.ResponseWriter, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	fees, moduleErr := s.cdp.Fees()
	if moduleErr != nil {
		writeModuleError(w, req.ID, moduleErr)
		return
	}
	writeResult(w, req.ID, fees)
}
