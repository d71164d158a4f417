package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// FeatureCount — число признаков во входном векторе модели.
const FeatureCount = 36

// FeatureNames возвращает имена признаков feat1..feat36 в порядке модели.
func FeatureNames() []string {
	names := make([]string, FeatureCount)
	for i := range names {
		names[i] = "feat" + strconv.Itoa(i+1)
	}
	return names
}

var sampleVector = [FeatureCount]float64{
	55, 2, 6750, 33, 32, 22, 2, 0, 14, 66,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 1, 0, 0,
	1, 0, 0, 1, 0, 0,
}

// SampleFeatures — документированный пример входа сервиса.
func SampleFeatures() map[string]float64 {
	m := make(map[string]float64, FeatureCount)
	for i, name := range FeatureNames() {
		m[name] = sampleVector[i]
	}
	return m
}

// SamplePayload — тело POST /predict по умолчанию.
func SamplePayload() []byte {
	data, _ := json.Marshal(SampleFeatures())
	return data
}

// ParsePayload проверяет пользовательский payload: JSON-объект с числовыми признаками.
func ParsePayload(data []byte) ([]byte, error) {
	var features map[string]float64
	if err := json.Unmarshal(data, &features); err != nil {
		return nil, fmt.Errorf("%w: payload must be a JSON object of numeric features: %v", ErrConfiguration, err)
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: payload has no features", ErrConfiguration)
	}
	return json.Marshal(features)
}

// PredictionResponse — ответ POST /predict.
type PredictionResponse struct {
	PredictedClass int                `json:"predicted_class"`
	Confidence     float64            `json:"confidence"`
	ModelVersion   string             `json:"model_version,omitempty"`
	FeaturesUsed   int                `json:"features_used,omitempty"`
	Probabilities  map[string]float64 `json:"prediction_probabilities,omitempty"`
}

var errMalformedPrediction = errors.New("malformed prediction response")

// DecodePrediction разбирает и проверяет тело ответа. Битое тело — провал пробы.
func DecodePrediction(body []byte) (PredictionResponse, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return PredictionResponse{}, fmt.Errorf("%w: %v", errMalformedPrediction, err)
	}
	for _, field := range []string{"predicted_class", "confidence"} {
		if _, ok := raw[field]; !ok {
			return PredictionResponse{}, fmt.Errorf("%w: missing %q", errMalformedPrediction, field)
		}
	}

	var resp PredictionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return PredictionResponse{}, fmt.Errorf("%w: %v", errMalformedPrediction, err)
	}
	if resp.Confidence < 0 || resp.Confidence > 1 {
		return PredictionResponse{}, fmt.Errorf("%w: confidence %v out of [0,1]", errMalformedPrediction, resp.Confidence)
	}
	return resp, nil
}

// ServiceInfo — ответ корневого эндпоинта GET /.
type ServiceInfo struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Status    string            `json:"status"`
	Endpoints map[string]string `json:"endpoints"`
}
