//go:build windows

package device

// workgroupSize is the number of invocations per workgroup in every kernel.
const workgroupSize = 256

// binaryShader builds an elementwise kernel over bindings a, b and result.
func binaryShader(expr string) string {
	return `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
        result[idx] = ` + expr + `;
    }
}
`
}

// gpuKernelSources maps kernel names to WGSL source.
var gpuKernelSources = map[string]string{
	"add": binaryShader("a[idx] + b[idx]"),
	"sub": binaryShader("a[idx] - b[idx]"),
	"mul": binaryShader("a[idx] * b[idx]"),
	"div": binaryShader("a[idx] / b[idx]"),
}
