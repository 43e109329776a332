package config

// Canned snippets served by the examples endpoint. Static data only; these
// strings are never executed by the broker itself.

const pythonExample = `print("Hello from the sandbox!")

numbers = [1, 2, 3, 4, 5]
squared = [x**2 for x in numbers]
print(f"Numbers: {numbers}")
print(f"Squared: {squared}")

def fibonacci(n):
    if n <= 1:
        return n
    return fibonacci(n-1) + fibonacci(n-2)

print(f"Fibonacci of 8: {fibonacci(8)}")
`

const javascriptExample = `console.log("Hello from the sandbox!");

const numbers = [1, 2, 3, 4, 5];
const squared = numbers.map(x => x * x);
console.log("Numbers:", numbers);
console.log("Squared:", squared);

function fibonacci(n) {
    if (n <= 1) return n;
    return fibonacci(n - 1) + fibonacci(n - 2);
}

console.log("Fibonacci of 8: " + fibonacci(8));
`

const bashExample = `#!/bin/sh
echo "Hello from the sandbox!"

name="friend"
echo "Welcome, $name"

echo "Counting from 1 to 5:"
for i in 1 2 3 4 5; do
    echo "Number: $i"
done
`
