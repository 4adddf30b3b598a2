package auditresponse

import (
	"strings"

	"bureaucracy-oracle/internal/models"
)

const maxReasonWords = 20

var (
	titleKeys       = []string{"titulo", "title"}
	directKeys      = []string{"respuesta_directa", "direct_answer", "directAnswer"}
	detailKeys      = []string{"detalles", "details"}
	regulationKeys  = []string{"normativa_aplicable", "regulations", "normativa"}
	nextActionKeys  = []string{"proxima_accion", "next_action", "nextAction"}
	warningKeys     = []string{"advertencias", "warnings"}
	finalObjectKeys = []string{"respuesta_final", "final_response", "finalResponse"}
)

// processingError replaces a missing final response.
func processingError() models.FinalResponse {
	return models.FinalResponse{
		Title:        "❌ Error en procesamiento",
		DirectAnswer: "No se pudo procesar la respuesta correctamente",
		Details:      []string{"Error al auditar la respuesta del agente"},
		Regulations:  []string{},
		NextAction:   "Por favor, intente nuevamente",
	}
}

// systemError is the final response of a Rejected audit.
func systemError() models.FinalResponse {
	return models.FinalResponse{
		Title:        "❌ Error de Sistema",
		DirectAnswer: "Hubo un error al procesar su consulta",
		Details:      []string{"El sistema no pudo completar la auditoría"},
		Regulations:  []string{},
		NextAction:   "Por favor, intente nuevamente en unos momentos",
	}
}

// decodeVerdict reads status, reason and final response from audit model
// output.
func decodeVerdict(raw map[string]interface{}) (models.AuditStatus, string, models.FinalResponse) {
	status := models.StatusRejected
	if s, ok := raw["status"].(string); ok {
		status = models.ParseAuditStatus(s)
	}

	reason := models.Stringify(raw["motivo_auditoria"])
	if reason == "" {
		reason = models.Stringify(raw["reason"])
	}
	if reason == "" {
		reason = "Error en auditoría"
	}

	final, ok := firstObject(raw, finalObjectKeys)
	if !ok {
		return status, limitWords(reason, maxReasonWords), processingError()
	}
	return status, limitWords(reason, maxReasonWords), decodeFinal(final)
}

func decodeFinal(m map[string]interface{}) models.FinalResponse {
	fr := models.FinalResponse{
		Title:        firstText(m, titleKeys),
		DirectAnswer: firstText(m, directKeys),
		Details:      firstList(m, detailKeys),
		Regulations:  firstList(m, regulationKeys),
		NextAction:   firstText(m, nextActionKeys),
		Warnings:     firstText(m, warningKeys),
	}
	if fr.Regulations == nil {
		fr.Regulations = []string{}
	}
	return fr
}

func firstObject(m map[string]interface{}, keys []string) (map[string]interface{}, bool) {
	for _, k := range keys {
		if obj, ok := m[k].(map[string]interface{}); ok {
			return obj, true
		}
	}
	return nil, false
}

func firstText(m map[string]interface{}, keys []string) string {
	for _, k := range keys {
		if s := models.Stringify(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func firstList(m map[string]interface{}, keys []string) []string {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return models.StringList(v)
		}
	}
	return nil
}

func limitWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ") + "..."
}
