package autograd

import (
	"fmt"

	"gradleak/tensor"
)

// Grad returns d(output)/d(inputs[i]) for each input. output must hold a
// single value. Inputs unreachable from output get a zero gradient.
//
// With createGraph the returned gradients are part of the graph and can be
// differentiated again; otherwise they are detached copies.
func Grad(output *Variable, inputs []*Variable, createGraph bool) (GradientList, error) {
	if output.Value.Numel() != 1 {
		return nil, fmt.Errorf("autograd: gradient of non-scalar output with shape %v", output.Value.Shape)
	}
	grads := backprop(output)
	out := make(GradientList, len(inputs))
	for i, in := range inputs {
		g, ok := grads[in]
		if !ok {
			g = Constant(tensor.New(in.Value.Shape...))
		}
		if !createGraph {
			g = g.Detach()
		}
		out[i] = g
	}
	return out, nil
}

// Backward accumulates d(v)/d(leaf) into the Grad of every trainable leaf
// reachable from v.
func (v *Variable) Backward() error {
	if v.Value.Numel() != 1 {
		return fmt.Errorf("autograd: backward on non-scalar output with shape %v", v.Value.Shape)
	}
	for in, g := range backprop(v) {
		if in.creator == nil && in.requiresGrad {
			in.accumulate(g.Value)
		}
	}
	return nil
}

func backprop(output *Variable) map[*Variable]*Variable {
	grads := make(map[*Variable]*Variable)
	if !output.requiresGrad {
		return grads
	}
	order := topoSort(output)
	grads[output] = Constant(tensor.Full(1, output.Value.Shape...))
	for i := len(order) - 1; i >= 0; i-- {
		v := order[i]
		g, ok := grads[v]
		if !ok || v.creator == nil {
			continue
		}
		inGrads := v.creator.op.backward(v, g)
		for j, in := range v.creator.inputs {
			if inGrads[j] == nil || !in.requiresGrad {
				continue
			}
			if prev, ok := grads[in]; ok {
				grads[in] = Add(prev, inGrads[j])
			} else {
				grads[in] = inGrads[j]
			}
		}
	}
	return grads
}

// topoSort returns the trainable subgraph under root with inputs before outputs.
func topoSort(root *Variable) []*Variable {
	var order []*Variable
	visited := make(map[*Variable]bool)
	var visit func(v *Variable)
	visit = func(v *Variable) {
		if visited[v] || !v.requiresGrad {
			return
		}
		visited[v] = true
		if v.creator != nil {
			for _, in := range v.creator.inputs {
				visit(in)
			}
		}
		order = append(order, v)
	}
	visit(root)
	return order
}
