package model

// InscriptionContent is the JSON object carried by an inscription
type InscriptionContent struct {
	ObjID  string `json:"objId"`
	ImgStr string `json:"imgStr"`
	Txt    string `json:"txt"`
}

// Inscription is the dApp-supplied inscription order
type Inscription struct {
	InscriptionContent InscriptionContent `json:"inscriptionContent"`
	InscriptionString  string             `json:"inscriptionString"` // base64 JSON of InscriptionContent
	AwardRatio         float64            `json:"awardRatio"`
	ToAddress          string             `json:"toAddress"`
}

// InscriptionRequestPayload is the payload of an inscription-broker request
type InscriptionRequestPayload struct {
	Inscription Inscription `json:"inscription"`
	ImageIndex  string      `json:"imageIndex"` // 2-char group tag
}

// RestoredInscription is an inscription rebuilt from chain history
type RestoredInscription struct {
	GroupKey  string              `json:"groupKey"`
	Content   *InscriptionContent `json:"inscContent"`
	AwardCost string              `json:"awardCost"`
	Time      int64               `json:"inscTime"`
}

// InscribeResponse lists the block addresses of the submitted fragments
type InscribeResponse struct {
	Blocks []string `json:"blocks"`
}
