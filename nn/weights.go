package nn

import (
	"fmt"

	"gradleak/tensor"
	"gradleak/utils"
)

// ExportWeights snapshots the parameters of m in parameter order.
func ExportWeights(m Module) *utils.ModelWeights {
	mw := &utils.ModelWeights{Version: utils.WeightsVersion}
	for i, p := range m.Parameters() {
		mw.Params = append(mw.Params, utils.TensorToWeightData(fmt.Sprintf("param.%d", i), p.Value))
	}
	return mw
}

// ImportWeights copies mw into the parameters of m. The count and every shape
// must match.
func ImportWeights(m Module, mw *utils.ModelWeights) error {
	params := m.Parameters()
	if len(mw.Params) != len(params) {
		return fmt.Errorf("weights file has %d params, model has %d", len(mw.Params), len(params))
	}
	for i, wd := range mw.Params {
		t, err := utils.WeightDataToTensor(wd)
		if err != nil {
			return err
		}
		if !tensor.SameShape(t, params[i].Value) {
			return fmt.Errorf("param %d: shape %v, model expects %v", i, t.Shape, params[i].Value.Shape)
		}
		copy(params[i].Value.Data, t.Data)
	}
	return nil
}
